package database

const schema = `
CREATE TABLE documents (
	id TEXT PRIMARY KEY,
	database_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX idx_documents_collection ON documents(database_id, collection_id);
CREATE INDEX idx_documents_created_at ON documents(created_at);
`

// migrations holds incremental schema changes applied in order from the
// current user_version. Index 0 is the base schema.
var migrations = []string{
	"",
}
