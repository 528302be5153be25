// Command mosaic plans a request into text, image and diagram parts,
// generates each part and assembles them into one document.
package main

func main() {
	Execute()
}
