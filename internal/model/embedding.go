package model

const (
	MetaText       = "text"
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaStart      = "start"
	MetaEnd        = "end"
)

type IndexEntry struct {
	Key      string            `json:"key"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata"`
}

type RetrievalHit struct {
	Key      string            `json:"key"`
	Distance float32           `json:"distance"`
	Metadata map[string]string `json:"metadata"`
}
