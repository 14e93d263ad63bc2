// Command bedrockdb inspects the records of a Minecraft Bedrock world.
package main

func main() {
	Execute()
}
