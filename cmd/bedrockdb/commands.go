package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/Lapis256/bedrockdb"
	"github.com/Lapis256/bedrockdb/record"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	levelCmd = &cobra.Command{
		Use:   "level",
		Short: "Prints the contents of level.dat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(func(db *bedrockdb.DB) error {
				h, err := db.LevelHeader()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"version": h.Version,
					"nbt":     h.NBT,
				})
			})
		},
	}
	propsCmd = &cobra.Command{
		Use:   "props",
		Short: "Prints the dynamic properties of the world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(func(db *bedrockdb.DB) error {
				props, err := db.DynamicProperties()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), props)
			})
		},
	}
	playerCmd = &cobra.Command{
		Use:   "player [uuid]",
		Short: "Prints the local player, or the server player with the UUID passed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(func(db *bedrockdb.DB) error {
				var (
					e   *record.Entity
					err error
				)
				if len(args) == 0 {
					e, err = db.LocalPlayer()
				} else {
					id, perr := uuid.Parse(args[0])
					if perr != nil {
						return fmt.Errorf("invalid player uuid: %w", perr)
					}
					e, err = db.Player(id)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e.NBT)
			})
		},
	}
	entitiesCmd = &cobra.Command{
		Use:   "entities",
		Short: "Lists the actors stored in the world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(func(db *bedrockdb.DB) error {
				iter, err := db.NewEntityIterator()
				if err != nil {
					return err
				}
				defer iter.Release()

				type entry struct {
					Key        string `json:"key"`
					Identifier string `json:"identifier,omitempty"`
					UniqueID   *int64 `json:"unique_id,omitempty"`
				}
				var entries []entry
				for iter.Next() {
					e := iter.Value()
					ent := entry{Key: hex.EncodeToString(iter.Key())}
					ent.Identifier, _ = e.Identifier()
					if id, ok := e.UniqueID(); ok {
						ent.UniqueID = &id
					}
					entries = append(entries, ent)
				}
				if err := iter.Error(); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	mapsCmd = &cobra.Command{
		Use:   "maps",
		Short: "Lists the maps stored in the world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(func(db *bedrockdb.DB) error {
				maps, err := db.Maps()
				if err != nil {
					return err
				}
				type entry struct {
					ID        int64 `json:"id"`
					ParentID  int64 `json:"parent_id"`
					Dimension uint8 `json:"dimension"`
					Scale     uint8 `json:"scale"`
					XCenter   int32 `json:"x_center"`
					ZCenter   int32 `json:"z_center"`
					Width     int16 `json:"width"`
					Height    int16 `json:"height"`
					Locked    bool  `json:"locked"`
					Empty     bool  `json:"empty"`
				}
				entries := make([]entry, 0, len(maps))
				for _, m := range maps {
					entries = append(entries, entry{
						ID:        m.ID,
						ParentID:  m.ParentID,
						Dimension: m.Dimension,
						Scale:     m.Scale,
						XCenter:   m.XCenter,
						ZCenter:   m.ZCenter,
						Width:     m.Width(),
						Height:    m.Height(),
						Locked:    m.Locked != 0,
						Empty:     m.IsEmpty(),
					})
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	exportMapCmd = &cobra.Command{
		Use:   "export-map [id] [file.png]",
		Short: "Writes a map as a PNG image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("id must be a number: %w", err)
			}
			return withWorld(func(db *bedrockdb.DB) error {
				m, err := db.Map(id)
				if err != nil {
					return err
				}
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				if err := m.EncodePNG(f); err != nil {
					_ = f.Close()
					return fmt.Errorf("encode png: %w", err)
				}
				return f.Close()
			})
		},
	}
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Checks the checksums and compression of every table file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(func(db *bedrockdb.DB) error {
				r, err := db.Verify()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tables=%d\n", r.Tables)
				for _, id := range db.Registry().IDs() {
					fmt.Fprintf(out, "blocks[%v]=%d\n", id, r.Blocks[id])
				}
				for _, f := range r.Failures {
					fmt.Fprintf(out, "FAIL %s: %v\n", f.File, f.Err)
				}
				if !r.OK() {
					return fmt.Errorf("%d of %d tables failed verification", len(r.Failures), r.Tables)
				}
				return nil
			})
		},
	}
)
