// Package searchtest provides an in-memory search service for tests.
//
// The server implements the index and document calls of package search over
// TLS (the api-key policy refuses plain HTTP). It supports the query shapes the
// clone issues: a single "<field> gt <literal>" filter, one ascending orderby
// clause, top, skip and count.
package searchtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/percona/search-clone/search"
)

const defaultTop = 50

// Server is a fake search service.
type Server struct {
	*httptest.Server

	key string

	mu           sync.Mutex
	indexes      map[string]search.Index
	docs         map[string]map[string]search.Document
	searchCalls  int
	indexCalls   int
	failSearch   int
	failIndexes  int
	failKeys     map[string]string
	pageSplit    int
	ignoreFilter bool
}

// NewServer starts a server that accepts requests carrying apiKey. It is
// closed when the test ends.
func NewServer(t testing.TB, apiKey string) *Server {
	t.Helper()

	s := &Server{
		key:      apiKey,
		indexes:  make(map[string]search.Index),
		docs:     make(map[string]map[string]search.Document),
		failKeys: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes/{name}", s.getIndex)
	mux.HandleFunc("PUT /indexes/{name}", s.putIndex)
	mux.HandleFunc("POST /indexes/{name}/docs/search.post.search", s.search)
	mux.HandleFunc("POST /indexes/{name}/docs/search.index", s.index)

	s.Server = httptest.NewTLSServer(s.authorize(mux))
	t.Cleanup(s.Close)

	return s
}

// ClientOptions returns options that trust the server certificate and
// disable retries.
func (s *Server) ClientOptions() *search.ClientOptions {
	return &search.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Transport: s.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	}
}

// PutIndex stores an index definition.
func (s *Server) PutIndex(index search.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexes[index.Name()] = index
	if s.docs[index.Name()] == nil {
		s.docs[index.Name()] = make(map[string]search.Document)
	}
}

// Index returns a stored index definition.
func (s *Server) Index(name string) (search.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexes[name]

	return index, ok
}

// AddDocuments stores docs in an existing index.
func (s *Server) AddDocuments(index string, docs ...search.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyField := s.keyField(index)
	for _, doc := range docs {
		s.docs[index][doc[keyField].String()] = doc
	}
}

// Documents returns the documents of index ordered by key.
func (s *Server) Documents(index string) []search.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyField := s.keyField(index)
	rv := make([]search.Document, 0, len(s.docs[index]))

	for _, doc := range s.docs[index] {
		rv = append(rv, doc)
	}

	sortByField(rv, keyField)

	return rv
}

// FailSearch makes every following query fail with status.
func (s *Server) FailSearch(status int) {
	s.mu.Lock()
	s.failSearch = status
	s.mu.Unlock()
}

// FailIndexes makes every following index definition write fail with status.
func (s *Server) FailIndexes(status int) {
	s.mu.Lock()
	s.failIndexes = status
	s.mu.Unlock()
}

// FailDocument makes the indexing of the document with key fail.
func (s *Server) FailDocument(key, message string) {
	s.mu.Lock()
	s.failKeys[key] = message
	s.mu.Unlock()
}

// SplitPages makes queries return at most n documents per response and a
// continuation for the rest.
func (s *Server) SplitPages(n int) {
	s.mu.Lock()
	s.pageSplit = n
	s.mu.Unlock()
}

// IgnoreFilter makes queries disregard their filter.
func (s *Server) IgnoreFilter() {
	s.mu.Lock()
	s.ignoreFilter = true
	s.mu.Unlock()
}

// SearchCalls returns the number of query requests served.
func (s *Server) SearchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.searchCalls
}

// IndexCalls returns the number of indexing requests served.
func (s *Server) IndexCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.indexCalls
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != s.key {
			writeError(w, http.StatusForbidden, "Forbidden", "invalid api key")

			return
		}

		if r.URL.Query().Get("api-version") == "" {
			writeError(w, http.StatusBadRequest, "MissingApiVersion", "api-version is required")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) getIndex(w http.ResponseWriter, r *http.Request) {
	index, ok := s.Index(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "ResourceNameNotFound", "index not found")

		return
	}

	rv := make(map[string]json.RawMessage, len(index)+2)
	for k, v := range index {
		rv[k] = v
	}

	rv["@odata.context"] = json.RawMessage(`"https://fake/$metadata#indexes/$entity"`)
	rv["@odata.etag"] = json.RawMessage(`"\"0x1\""`)

	writeJSON(w, http.StatusOK, rv)
}

func (s *Server) putIndex(w http.ResponseWriter, r *http.Request) {
	var index search.Index

	err := json.NewDecoder(r.Body).Decode(&index)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", err.Error())

		return
	}

	name := r.PathValue("name")
	if index.Name() != name {
		writeError(w, http.StatusBadRequest, "InvalidName", "index name does not match the URL")

		return
	}

	for k := range index {
		if strings.HasPrefix(k, "@odata.") {
			writeError(w, http.StatusBadRequest, "InvalidRequestBody", "unexpected member "+k)

			return
		}
	}

	s.mu.Lock()
	status := s.failIndexes
	_, exists := s.indexes[name]
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, "IndexWriteFailed", "index definition rejected")

		return
	}

	s.PutIndex(index)

	if exists {
		writeJSON(w, http.StatusOK, index)
	} else {
		writeJSON(w, http.StatusCreated, index)
	}
}

type searchRequest struct {
	Search  string `json:"search"`
	Filter  string `json:"filter,omitempty"`
	OrderBy string `json:"orderby,omitempty"`
	Top     int    `json:"top,omitempty"`
	Skip    int    `json:"skip,omitempty"`
	Count   bool   `json:"count,omitempty"`
}

var filterRE = regexp.MustCompile(`^(\w+) gt (.+)$`)

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", err.Error())

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchCalls++

	if s.failSearch != 0 {
		writeError(w, s.failSearch, "QueryFailed", "query failed")

		return
	}

	name := r.PathValue("name")
	if _, ok := s.indexes[name]; !ok {
		writeError(w, http.StatusNotFound, "ResourceNameNotFound", "index not found")

		return
	}

	match, err := s.matcher(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidFilter", err.Error())

		return
	}

	var docs []search.Document

	for _, doc := range s.docs[name] {
		if match(doc) {
			docs = append(docs, doc)
		}
	}

	if req.OrderBy != "" {
		sortByField(docs, strings.TrimSuffix(req.OrderBy, " asc"))
	}

	total := int64(len(docs))
	top := req.Top

	if top == 0 {
		top = defaultTop
	}

	docs = docs[min(req.Skip, len(docs)):]
	docs = docs[:min(top, len(docs))]

	var next *searchRequest

	if s.pageSplit > 0 && len(docs) > s.pageSplit && top > s.pageSplit {
		docs = docs[:s.pageSplit]
		next = &req
		next.Skip += s.pageSplit
		next.Top = top - s.pageSplit
	}

	value := make([]map[string]any, len(docs))

	for i, doc := range docs {
		m := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			m[k] = v
		}

		m["@search.score"] = 1
		value[i] = m
	}

	rv := map[string]any{"value": value}
	if req.Count {
		rv["@odata.count"] = total
	}

	if next != nil {
		rv["@search.nextPageParameters"] = next
	}

	writeJSON(w, http.StatusOK, rv)
}

// matcher returns the predicate of a "<field> gt <literal>" filter.
func (s *Server) matcher(filter string) (func(search.Document) bool, error) {
	if filter == "" || s.ignoreFilter {
		return func(search.Document) bool { return true }, nil
	}

	m := filterRE.FindStringSubmatch(filter)
	if m == nil {
		return nil, &filterError{filter}
	}

	field := m[1]
	lit := parseLiteral(m[2])

	return func(doc search.Document) bool {
		v, ok := doc.Get(field)
		if !ok {
			return false
		}

		c, err := search.Compare(v, lit)

		return err == nil && c > 0
	}, nil
}

type filterError struct {
	filter string
}

func (e *filterError) Error() string {
	return "unsupported filter: " + e.filter
}

func parseLiteral(lit string) search.Value {
	if strings.HasPrefix(lit, "'") && strings.HasSuffix(lit, "'") && len(lit) >= 2 {
		return search.String(strings.ReplaceAll(lit[1:len(lit)-1], "''", "'"))
	}

	switch lit {
	case "true":
		return search.Bool(true)
	case "false":
		return search.Bool(false)
	}

	return search.Number(json.Number(lit))
}

type indexBatch struct {
	Value []search.Document `json:"value"`
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	var batch indexBatch

	err := json.NewDecoder(r.Body).Decode(&batch)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", err.Error())

		return
	}

	if len(batch.Value) > search.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "BatchTooLarge", "too many documents")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexCalls++

	name := r.PathValue("name")
	if _, ok := s.indexes[name]; !ok {
		writeError(w, http.StatusNotFound, "ResourceNameNotFound", "index not found")

		return
	}

	keyField := s.keyField(name)
	results := make([]search.IndexingResult, 0, len(batch.Value))
	status := http.StatusOK

	for _, doc := range batch.Value {
		action, _ := doc["@search.action"].Str()
		delete(doc, "@search.action")

		key := doc[keyField].String()

		if msg, ok := s.failKeys[key]; ok {
			results = append(results, search.IndexingResult{
				Key:          key,
				ErrorMessage: msg,
				StatusCode:   http.StatusBadRequest,
			})
			status = http.StatusMultiStatus

			continue
		}

		_, exists := s.docs[name][key]
		code := http.StatusCreated

		if exists {
			code = http.StatusOK
		}

		switch search.ActionType(action) {
		case search.ActionDelete:
			delete(s.docs[name], key)
		case search.ActionMerge, search.ActionMergeOrUpload:
			merged := s.docs[name][key]
			if merged == nil {
				merged = search.Document{}
			}

			for k, v := range doc {
				merged[k] = v
			}

			s.docs[name][key] = merged
		default:
			s.docs[name][key] = doc
		}

		results = append(results, search.IndexingResult{
			Key:        key,
			Succeeded:  true,
			StatusCode: code,
		})
	}

	writeJSON(w, status, map[string]any{"value": results})
}

// keyField returns the name of the key field of index. Callers hold s.mu.
func (s *Server) keyField(index string) string {
	var def struct {
		Fields []struct {
			Name string `json:"name"`
			Key  bool   `json:"key"`
		} `json:"fields"`
	}

	raw, _ := json.Marshal(s.indexes[index])
	_ = json.Unmarshal(raw, &def)

	for _, f := range def.Fields {
		if f.Key {
			return f.Name
		}
	}

	return "ObjectID"
}

func sortByField(docs []search.Document, field string) {
	slices.SortStableFunc(docs, func(a, b search.Document) int {
		c, err := search.Compare(a[field], b[field])
		if err != nil {
			return strings.Compare(a[field].String(), b[field].String())
		}

		return c
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
