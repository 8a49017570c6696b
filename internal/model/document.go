package model

type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type Chunk struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Index  int    `json:"chunk_index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}
