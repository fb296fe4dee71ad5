package chat

type DocumentInsight struct {
	ChunkCount       int
	PageCount        int
	Folders          []string
	RelatedDocuments []RelatedDocument
}

type RelatedDocument struct {
	Path  string
	Title string
}

type Source struct {
	SourcePath string
	PageIndex  int
	Score      float64
	Insight    DocumentInsight
}

type Response struct {
	Answer  string
	Sources []Source
	Signals []string
}
