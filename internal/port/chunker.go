package port

type Chunker interface {
	// Validate rejects text too short to be learned.
	Validate(text string) error

	Chunk(text string) ([]string, error)
}
