package transform

import (
	"embed"
	"fmt"
	"path"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

var tsLanguage = ts.NewLanguage(tsTypescript.LanguageTypescript())

var tsParserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(tsLanguage); err != nil {
			panic("transform: failed to set typescript language: " + err.Error())
		}
		return parser
	},
}

func getTSParser() *ts.Parser {
	return tsParserPool.Get().(*ts.Parser)
}

func putTSParser(p *ts.Parser) {
	p.Reset()
	tsParserPool.Put(p)
}

type queryManager struct {
	mu      sync.Mutex
	cached  map[string]*ts.Query
}

func newQueryManager() *queryManager {
	return &queryManager{cached: make(map[string]*ts.Query)}
}

func (qm *queryManager) query(name string) (*ts.Query, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if q, ok := qm.cached[name]; ok {
		return q, nil
	}
	data, err := queryFiles.ReadFile(path.Join("queries", "typescript", name+".scm"))
	if err != nil {
		return nil, fmt.Errorf("read query %s: %w", name, err)
	}
	q, qerr := ts.NewQuery(tsLanguage, string(data))
	if qerr != nil {
		return nil, fmt.Errorf("parse query %s: %w", name, qerr)
	}
	qm.cached[name] = q
	return q, nil
}

var (
	globalQM     *queryManager
	globalQMOnce sync.Once
)

func getQueryManager() *queryManager {
	globalQMOnce.Do(func() {
		globalQM = newQueryManager()
	})
	return globalQM
}
