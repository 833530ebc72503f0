// Package knowledge indexes a folder of documents into a vector collection
// and retrieves passages relevant to a query.
package knowledge

// CollectionName is the collection every knowledge folder is indexed into.
const CollectionName = "knowledge_base"

// DefaultTopK is the number of references fetched per retrieval.
const DefaultTopK = 5

// Reference is a retrieved passage with its provenance. Lower distance is
// more relevant.
type Reference struct {
	Content  string  `json:"content"`
	Filepath string  `json:"filepath"`
	ChunkID  int     `json:"chunk_id"`
	Distance float64 `json:"distance"`
}
