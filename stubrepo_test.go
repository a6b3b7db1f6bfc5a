package doro

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/julienschmidt/httprouter"
)

// A stubRepo implements just enough of a digital object repository to
// exercise the client: password-grant tokens, the design endpoint,
// object CRUD with payloads and ACLs, a tiny search matcher, and
// schema registration. It is deliberately simple; it only understands
// the handful of query shapes the client sends.
type stubRepo struct {
	mu         sync.Mutex
	prefix     string
	accounts   map[string]string // username -> password
	tokens     map[string]string // token -> username
	revoked    map[string]bool
	objects    map[string]*stubObject
	order      []string            // ids in creation order
	schemas    map[string][]byte   // type name -> schema document
	required   map[string][]string // type name -> required content keys
	searches   int                 // search requests served
	requests   int                 // every request served
	nextHandle int
	nextToken  int
}

type stubObject struct {
	ID       string
	Type     string
	Content  map[string]interface{}
	Readers  []string
	Writers  []string
	Payloads []stubPayload
}

type stubPayload struct {
	Name      string
	MediaType string
	Filename  string
	Data      []byte
}

func newStubRepo() *stubRepo {
	st := &stubRepo{
		prefix:   "test",
		accounts: map[string]string{"alice": "secret1", "bob": "hunter2"},
		tokens:   make(map[string]string),
		revoked:  make(map[string]bool),
		objects:  make(map[string]*stubObject),
		schemas:  make(map[string][]byte),
		required: map[string][]string{"Document": {"name"}},
	}
	// principals live in the repository as ordinary objects
	st.addObject(&stubObject{
		ID:      "test/u-alice",
		Type:    "User",
		Content: map[string]interface{}{"username": "alice"},
	})
	st.addObject(&stubObject{
		ID:      "test/u-bob",
		Type:    "User",
		Content: map[string]interface{}{"username": "bob"},
	})
	st.addObject(&stubObject{
		ID:      "test/g-staff",
		Type:    "Group",
		Content: map[string]interface{}{"groupName": "staff"},
	})
	return st
}

func (st *stubRepo) addObject(o *stubObject) {
	st.objects[o.ID] = o
	st.order = append(st.order, o.ID)
}

func (st *stubRepo) handler() http.Handler {
	r := httprouter.New()
	r.POST("/auth/token", st.authToken)
	r.POST("/auth/revoke", st.authRevoke)
	r.POST("/auth/introspect", st.authIntrospect)
	r.GET("/design", st.design)
	r.POST("/objects", st.createObject)
	r.GET("/objects/*id", st.readObject)
	r.PUT("/objects/*id", st.updateObject)
	r.DELETE("/objects/*id", st.deleteObject)
	r.PUT("/schemas/:name", st.putSchema)
	r.GET("/schemas/:name", st.getSchema)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		st.mu.Lock()
		st.requests++
		st.mu.Unlock()
		r.ServeHTTP(w, req)
	})
}

func (st *stubRepo) searchCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.searches
}

func (st *stubRepo) requestCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.requests
}

// principalID maps a username to the id of its User object, "" if the
// request carried no valid token.
func (st *stubRepo) principalID(user string) string {
	for _, id := range st.order {
		o := st.objects[id]
		if o != nil && o.Type == "User" && o.Content["username"] == user {
			return id
		}
	}
	return ""
}

// user resolves the bearer token on a request. ok is false when a
// token was presented but is unknown or revoked.
func (st *stubRepo) user(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", true // anonymous
	}
	tok := strings.TrimPrefix(auth, "Bearer ")
	if st.revoked[tok] {
		return "", false
	}
	u, ok := st.tokens[tok]
	return u, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	buf, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf)
}

func writeMessage(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"message": fmt.Sprintf(format, args...)})
}

func (st *stubRepo) authToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	r.ParseForm()
	user := r.PostFormValue("username")
	pass := r.PostFormValue("password")
	if r.PostFormValue("grant_type") != "password" || st.accounts[user] == "" || st.accounts[user] != pass {
		writeMessage(w, 401, "invalid credentials")
		return
	}
	st.nextToken++
	tok := fmt.Sprintf("tok%d", st.nextToken)
	st.tokens[tok] = user
	writeJSON(w, 200, map[string]string{"access_token": tok, "username": user})
}

func (st *stubRepo) authRevoke(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	r.ParseForm()
	tok := r.PostFormValue("token")
	if _, ok := st.tokens[tok]; !ok || st.revoked[tok] {
		writeMessage(w, 401, "token is not active")
		return
	}
	st.revoked[tok] = true
	w.WriteHeader(200)
}

func (st *stubRepo) authIntrospect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	r.ParseForm()
	tok := r.PostFormValue("token")
	user, ok := st.tokens[tok]
	if !ok || st.revoked[tok] {
		writeJSON(w, 200, map[string]interface{}{"active": false})
		return
	}
	writeJSON(w, 200, map[string]interface{}{"active": true, "username": user})
}

func (st *stubRepo) design(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, 200, map[string]interface{}{
		"handleMintingConfig": map[string]string{"prefix": st.prefix},
	})
}

// parseBody pulls content, acl, and payloads out of either a JSON or a
// multipart request body.
func parseBody(r *http.Request) (content map[string]interface{}, acl map[string][]string, payloads []stubPayload, err error) {
	ctype := r.Header.Get("Content-Type")
	if strings.HasPrefix(ctype, "multipart/") {
		if err = r.ParseMultipartForm(32 << 20); err != nil {
			return
		}
		if c := r.PostFormValue("content"); c != "" {
			if err = json.Unmarshal([]byte(c), &content); err != nil {
				return
			}
		}
		if a := r.PostFormValue("acl"); a != "" {
			if err = json.Unmarshal([]byte(a), &acl); err != nil {
				return
			}
		}
		for name, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, ferr := fh.Open()
				if ferr != nil {
					err = ferr
					return
				}
				data, ferr := io.ReadAll(f)
				f.Close()
				if ferr != nil {
					err = ferr
					return
				}
				payloads = append(payloads, stubPayload{
					Name:      name,
					MediaType: fh.Header.Get("Content-Type"),
					Filename:  fh.Filename,
					Data:      data,
				})
			}
		}
		return
	}
	var buf []byte
	buf, err = io.ReadAll(r.Body)
	if err == nil && len(buf) > 0 {
		err = json.Unmarshal(buf, &content)
	}
	return
}

func (st *stubRepo) checkRequired(typeName string, content map[string]interface{}) string {
	for _, key := range st.required[typeName] {
		if _, ok := content[key]; !ok {
			return key
		}
	}
	return ""
}

func (o *stubObject) record() map[string]interface{} {
	content := make(map[string]interface{}, len(o.Content)+1)
	for k, v := range o.Content {
		content[k] = v
	}
	content["id"] = o.ID
	payloads := []map[string]interface{}{}
	for _, p := range o.Payloads {
		payloads = append(payloads, map[string]interface{}{
			"name":      p.Name,
			"mediaType": p.MediaType,
			"filename":  p.Filename,
			"size":      len(p.Data),
		})
	}
	rec := map[string]interface{}{
		"id":      o.ID,
		"type":    o.Type,
		"content": content,
		"metadata": map[string]interface{}{
			"createdOn": 1700000000000,
			"createdBy": "stub",
			"txnId":     1,
		},
		"acl": map[string]interface{}{
			"readers": o.Readers,
			"writers": o.Writers,
		},
	}
	if len(payloads) > 0 {
		rec["payloads"] = payloads
	}
	return rec
}

func (st *stubRepo) createObject(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	user, ok := st.user(r)
	if !ok || user == "" {
		writeMessage(w, 401, "authentication required")
		return
	}
	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		writeMessage(w, 400, "missing type")
		return
	}
	content, acl, payloads, err := parseBody(r)
	if err != nil {
		writeMessage(w, 400, "bad request body: %v", err)
		return
	}
	if missing := st.checkRequired(typeName, content); missing != "" {
		writeMessage(w, 400, "missing required property: %s", missing)
		return
	}
	id := r.URL.Query().Get("handle")
	if id == "" {
		if suffix := r.URL.Query().Get("suffix"); suffix != "" {
			id = st.prefix + "/" + suffix
		} else {
			st.nextHandle++
			id = fmt.Sprintf("%s/%d", st.prefix, st.nextHandle)
		}
	}
	if _, exists := st.objects[id]; exists {
		writeMessage(w, 409, "handle %s already exists", id)
		return
	}
	o := &stubObject{
		ID:       id,
		Type:     typeName,
		Content:  content,
		Readers:  acl["readers"],
		Writers:  acl["writers"],
		Payloads: payloads,
	}
	if r.URL.Query().Get("dryRun") != "true" {
		st.addObject(o)
	}
	writeJSON(w, 200, o.record())
}

func trimID(ps httprouter.Params) string {
	return strings.TrimPrefix(ps.ByName("id"), "/")
}

// findReadable looks up an object, applying the read ACL. A miss and a
// read the caller may not know about are both a 404.
func (st *stubRepo) findReadable(w http.ResponseWriter, r *http.Request, id string) *stubObject {
	user, ok := st.user(r)
	if !ok {
		writeMessage(w, 401, "token is not active")
		return nil
	}
	o := st.objects[id]
	if o == nil {
		writeMessage(w, 404, "no object %s", id)
		return nil
	}
	if len(o.Readers) > 0 && !contains(o.Readers, st.principalID(user)) && !contains(o.Writers, st.principalID(user)) {
		writeMessage(w, 404, "no object %s", id)
		return nil
	}
	return o
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (st *stubRepo) readObject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := trimID(ps)
	if id == "" {
		st.search(w, r)
		return
	}
	o := st.findReadable(w, r, id)
	if o == nil {
		return
	}
	q := r.URL.Query()
	if name := q.Get("payload"); name != "" {
		for _, p := range o.Payloads {
			if p.Name == name {
				w.Header().Set("Content-Type", p.MediaType)
				w.Write(p.Data)
				return
			}
		}
		writeMessage(w, 404, "no payload %s", name)
		return
	}
	if ptr := q.Get("jsonPointer"); ptr != "" {
		sub, ok := pointerGet(o.Content, ptr)
		if !ok {
			writeMessage(w, 404, "no such pointer %s", ptr)
			return
		}
		writeJSON(w, 200, sub)
		return
	}
	writeJSON(w, 200, o.record())
}

func (st *stubRepo) updateObject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := trimID(ps)
	user, ok := st.user(r)
	if !ok {
		writeMessage(w, 401, "token is not active")
		return
	}
	o := st.objects[id]
	if o == nil {
		writeMessage(w, 404, "no object %s", id)
		return
	}
	if len(o.Writers) > 0 && !contains(o.Writers, st.principalID(user)) {
		if user == "" {
			writeMessage(w, 401, "authentication required")
		} else {
			writeMessage(w, 403, "not a writer of %s", id)
		}
		return
	}
	q := r.URL.Query()
	dryRun := q.Get("dryRun") == "true"

	// work on a copy so dry runs have no side effect
	next := *o
	next.Content = make(map[string]interface{}, len(o.Content))
	for k, v := range o.Content {
		next.Content[k] = v
	}
	next.Payloads = append([]stubPayload(nil), o.Payloads...)

	if ptr := q.Get("jsonPointer"); ptr != "" {
		buf, _ := io.ReadAll(r.Body)
		var sub interface{}
		if err := json.Unmarshal(buf, &sub); err != nil {
			writeMessage(w, 400, "bad subtree: %v", err)
			return
		}
		if !pointerSet(next.Content, ptr, sub) {
			writeMessage(w, 400, "no such pointer %s", ptr)
			return
		}
	} else {
		content, acl, payloads, err := parseBody(r)
		if err != nil {
			writeMessage(w, 400, "bad request body: %v", err)
			return
		}
		if content != nil {
			next.Content = content
		}
		if acl != nil {
			next.Readers = acl["readers"]
			next.Writers = acl["writers"]
		}
		next.Payloads = append(next.Payloads, payloads...)
	}
	if t := q.Get("type"); t != "" {
		next.Type = t
	}
	if name := q.Get("payloadToDelete"); name != "" {
		keep := next.Payloads[:0]
		for _, p := range next.Payloads {
			if p.Name != name {
				keep = append(keep, p)
			}
		}
		next.Payloads = keep
	}
	if missing := st.checkRequired(next.Type, next.Content); missing != "" {
		writeMessage(w, 400, "missing required property: %s", missing)
		return
	}
	if !dryRun {
		st.objects[id] = &next
	}
	writeJSON(w, 200, next.record())
}

func (st *stubRepo) deleteObject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := trimID(ps)
	user, ok := st.user(r)
	if !ok {
		writeMessage(w, 401, "token is not active")
		return
	}
	o := st.objects[id]
	if o == nil {
		writeMessage(w, 404, "no object %s", id)
		return
	}
	if len(o.Writers) > 0 && !contains(o.Writers, st.principalID(user)) {
		writeMessage(w, 403, "not a writer of %s", id)
		return
	}
	if ptr := r.URL.Query().Get("jsonPointer"); ptr != "" {
		if !pointerDelete(o.Content, ptr) {
			writeMessage(w, 400, "no such pointer %s", ptr)
			return
		}
		w.WriteHeader(200)
		return
	}
	delete(st.objects, id)
	for i, oid := range st.order {
		if oid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(200)
}

// The search matcher understands only the query shapes the client
// sends: principal resolution, schema existence, id lookup, and plain
// type queries.
var (
	rePrincipal = regexp.MustCompile(`^\(type:"User" AND /username:"(.*)"\) OR \(type:"Group" AND /groupName:"(.*)"\)$`)
	reSchema    = regexp.MustCompile(`^type:"Schema" AND /name:"(.*)"$`)
	reID        = regexp.MustCompile(`^id:"(.*)"$`)
	reType      = regexp.MustCompile(`^type:"(.*)"$`)
)

func (st *stubRepo) matchQuery(query string) []*stubObject {
	var keep func(o *stubObject) bool
	switch {
	case rePrincipal.MatchString(query):
		name := rePrincipal.FindStringSubmatch(query)[1]
		keep = func(o *stubObject) bool {
			return (o.Type == "User" && o.Content["username"] == name) ||
				(o.Type == "Group" && o.Content["groupName"] == name)
		}
	case reSchema.MatchString(query):
		name := reSchema.FindStringSubmatch(query)[1]
		keep = func(o *stubObject) bool {
			return o.Type == "Schema" && o.Content["name"] == name
		}
	case reID.MatchString(query):
		id := reID.FindStringSubmatch(query)[1]
		keep = func(o *stubObject) bool { return o.ID == id }
	case reType.MatchString(query):
		t := reType.FindStringSubmatch(query)[1]
		keep = func(o *stubObject) bool { return o.Type == t }
	default:
		keep = func(o *stubObject) bool { return false }
	}
	var out []*stubObject
	for _, id := range st.order {
		if o := st.objects[id]; o != nil && keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func (st *stubRepo) search(w http.ResponseWriter, r *http.Request) {
	st.searches++
	q := r.URL.Query()
	matches := st.matchQuery(q.Get("query"))
	total := len(matches)

	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	pageNum, _ := strconv.Atoi(q.Get("pageNum"))
	if pageSize == 0 {
		writeJSON(w, 200, map[string]interface{}{"size": total, "results": []interface{}{}})
		return
	}
	if pageSize > 0 {
		start := pageNum * pageSize
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}
		matches = matches[start:end]
	}

	results := []interface{}{}
	for _, o := range matches {
		if q.Get("ids") == "true" {
			results = append(results, o.ID)
		} else {
			results = append(results, o.record())
		}
	}
	writeJSON(w, 200, map[string]interface{}{"size": total, "results": results})
}

func (st *stubRepo) putSchema(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	user, ok := st.user(r)
	if !ok || user == "" {
		writeMessage(w, 401, "authentication required")
		return
	}
	name := ps.ByName("name")
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, 400, "bad schema body")
		return
	}
	if _, exists := st.schemas[name]; !exists {
		st.addObject(&stubObject{
			ID:      st.prefix + "/schema-" + name,
			Type:    "Schema",
			Content: map[string]interface{}{"name": name},
		})
	}
	st.schemas[name] = buf
	w.WriteHeader(200)
}

func (st *stubRepo) getSchema(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	buf, ok := st.schemas[ps.ByName("name")]
	if !ok {
		writeMessage(w, 404, "no schema %s", ps.ByName("name"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf)
}

// pointer helpers: enough of RFC 6901 for nested maps, which is all
// the tests need.

func pointerTokens(ptr string) ([]string, bool) {
	if !strings.HasPrefix(ptr, "/") {
		return nil, false
	}
	raw := strings.Split(ptr[1:], "/")
	for i, tok := range raw {
		tok = strings.ReplaceAll(tok, "~1", "/")
		raw[i] = strings.ReplaceAll(tok, "~0", "~")
	}
	return raw, true
}

func pointerGet(root map[string]interface{}, ptr string) (interface{}, bool) {
	toks, ok := pointerTokens(ptr)
	if !ok {
		return nil, false
	}
	var cur interface{} = root
	for _, tok := range toks {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[tok]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func pointerSet(root map[string]interface{}, ptr string, val interface{}) bool {
	toks, ok := pointerTokens(ptr)
	if !ok {
		return false
	}
	m := root
	for _, tok := range toks[:len(toks)-1] {
		next, ok := m[tok].(map[string]interface{})
		if !ok {
			return false
		}
		m = next
	}
	m[toks[len(toks)-1]] = val
	return true
}

func pointerDelete(root map[string]interface{}, ptr string) bool {
	toks, ok := pointerTokens(ptr)
	if !ok {
		return false
	}
	m := root
	for _, tok := range toks[:len(toks)-1] {
		next, ok := m[tok].(map[string]interface{})
		if !ok {
			return false
		}
		m = next
	}
	if _, ok := m[toks[len(toks)-1]]; !ok {
		return false
	}
	delete(m, toks[len(toks)-1])
	return true
}

// test plumbing

func newTestServer(t *testing.T) (*stubRepo, *httptest.Server) {
	t.Helper()
	st := newStubRepo()
	srv := httptest.NewServer(st.handler())
	t.Cleanup(srv.Close)
	return st, srv
}

func openTestSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()
	s, err := Open(srv.URL, "alice", "secret1")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return s
}
