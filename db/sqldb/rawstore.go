package sqldb

import (
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"
)

// RawSQLStore holds the statements of one database dialect, keyed
// "{group}.{name}".
type RawSQLStore struct {
	stmts map[string]string
}

func NewRawStore() *RawSQLStore {
	return &RawSQLStore{stmts: make(map[string]string)}
}

func (s *RawSQLStore) Set(key string, rawStmt string) {
	s.stmts[key] = rawStmt
}

func (s *RawSQLStore) Get(key string) (string, bool) {
	stmt, exists := s.stmts[key]
	return stmt, exists
}

func (s *RawSQLStore) Len() int {
	return len(s.stmts)
}

type StoreGroupedStmtKey struct {
	Group    string
	StmtName string
}

func (k StoreGroupedStmtKey) String() string {
	return k.Group + "." + k.StmtName
}

// GroupFS is a statement group: an fs with a top level `sql` directory.
type GroupFS struct {
	Group string
	FS    fs.FS
}

// LoadRawStmtsToStore reads every group into store. A file named
// `{name}.{dbtype}` is taken as-is; a `{name}.sql` file is standard SQL with
// `?` placeholders, converted to the dialect's prefix, and only used when no
// dialect file exists.
func LoadRawStmtsToStore(store *RawSQLStore, groups []GroupFS, dbtype string, placeholderPrefix byte) error {
	stmtCnt := 0
	for _, groupFS := range groups {
		files, err := fs.ReadDir(groupFS.FS, "sql")
		if err != nil {
			return fmt.Errorf("failed to read `sql` dir of group %q: %w", groupFS.Group, err)
		}
		dialect := make(map[string]bool)
		for _, f := range files {
			if name, ok := strings.CutSuffix(f.Name(), "."+dbtype); ok {
				dialect[name] = true
			}
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			filename := f.Name()
			ext := path.Ext(filename)
			name := strings.TrimSuffix(filename, ext)
			ext = strings.TrimPrefix(ext, ".")
			if ext != dbtype && (ext != "sql" || dialect[name]) {
				continue
			}
			data, err := fs.ReadFile(groupFS.FS, path.Join("sql", filename))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", filename, err)
			}
			key := StoreGroupedStmtKey{Group: groupFS.Group, StmtName: name}.String()
			if ext == dbtype {
				store.Set(key, string(data))
			} else {
				store.Set(key, ReplaceStaticPlaceholders(string(data), placeholderPrefix))
			}
			stmtCnt++
		}
	}
	log.Printf("[INFO][%s] %d sql raw stmts loaded for %d groups", dbtype, stmtCnt, len(groups))
	return nil
}
