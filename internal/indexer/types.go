package indexer

import "dpia-ai/internal/storage"

// Element is one typed unit extracted from a document, in document order.
type Element struct {
	Type storage.BlockType
	Text string // text and table content, or image alt text
	// Source is the image destination for image elements: a data URI,
	// an http(s) URL or a path relative to the document.
	Source string
}

// Document is one uploaded file.
type Document struct {
	Name    string
	Content []byte
}
