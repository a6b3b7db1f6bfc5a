package doro

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/antonholmquist/jason"
)

// A Handle is a reference to an object in the repository, an identifier
// of the form prefix/suffix bound to the Session it came from. Handles
// built with NewHandle are checked against the session's prefix;
// handles inside results returned by the server are taken as-is.
type Handle struct {
	ID string

	session *Session
}

// NewHandle validates id and binds it to the session. The prefix
// component must match the prefix this repository mints under; a
// mismatch is caught here, with no server round trip.
func (s *Session) NewHandle(id string) (Handle, error) {
	slash := strings.IndexByte(id, '/')
	if slash <= 0 || slash == len(id)-1 {
		return Handle{}, usageErrorf("malformed handle %q, want prefix/suffix", id)
	}
	if id[:slash] != s.Prefix {
		return Handle{}, usageErrorf("handle %q does not match repository prefix %q", id, s.Prefix)
	}
	return Handle{ID: id, session: s}, nil
}

func (h Handle) String() string { return h.ID }

// Prefix returns the namespace component of the handle.
func (h Handle) Prefix() string {
	if i := strings.IndexByte(h.ID, '/'); i >= 0 {
		return h.ID[:i]
	}
	return h.ID
}

// Suffix returns the part of the handle after the prefix.
func (h Handle) Suffix() string {
	if i := strings.IndexByte(h.ID, '/'); i >= 0 {
		return h.ID[i+1:]
	}
	return ""
}

// Metadata is the server-maintained record on an object.
type Metadata struct {
	CreatedOn  int64 // milliseconds since the epoch
	CreatedBy  string
	ModifiedOn int64
	ModifiedBy string
	TxnID      int64
}

// An Object is a point-in-time snapshot of a digital object as the
// server returned it. The client never mutates an Object in place:
// every operation that changes server state returns a fresh snapshot,
// and the old one should be considered stale afterward.
type Object struct {
	Handle   Handle
	Type     string
	Content  map[string]interface{}
	Metadata Metadata
	Payloads []PayloadInfo
	ACL      ACL
}

// PayloadNames lists the names of the object's attachments.
func (o *Object) PayloadNames() []string {
	var names []string
	for _, p := range o.Payloads {
		names = append(names, p.Name)
	}
	return names
}

// CreateOptions adjust Create. The zero value is fine.
type CreateOptions struct {
	// Handle assigns the object an explicit handle. Its prefix must
	// match the session's prefix.
	Handle string
	// Suffix asks the server to mint prefix/Suffix instead of
	// generating a suffix.
	Suffix string
	// DryRun asks the server to validate and echo the object without
	// persisting anything. The returned snapshot's handle does not
	// resolve afterward.
	DryRun bool
	// Payloads are local files to attach.
	Payloads []Payload
	// ACL lists reader and writer names. When nil, an authenticated
	// create defaults to reader = writer = the session's own
	// principal: objects are private by default, never public by
	// default.
	ACL *ACLNames
}

// Create stores a new object of the given type and returns its first
// snapshot. The server validates content against the type's schema; a
// rejection comes back as an error matching ErrValidation, a duplicate
// handle as one matching ErrConflict.
func (s *Session) Create(content interface{}, typeName string, opts *CreateOptions) (*Object, error) {
	if typeName == "" {
		return nil, usageErrorf("create needs a type name")
	}
	if opts == nil {
		opts = &CreateOptions{}
	}
	if opts.Handle != "" {
		if _, err := s.NewHandle(opts.Handle); err != nil {
			return nil, err
		}
	}

	query := url.Values{"type": {typeName}, "full": {"true"}}
	if opts.Handle != "" {
		query.Set("handle", opts.Handle)
	}
	if opts.Suffix != "" {
		query.Set("suffix", opts.Suffix)
	}
	if opts.DryRun {
		query.Set("dryRun", "true")
	}

	names := opts.ACL
	if names == nil && s.Username != "" {
		names = &ACLNames{Readers: []string{s.Username}, Writers: []string{s.Username}}
	}
	acl, err := s.resolveACL(names)
	if err != nil {
		return nil, err
	}

	var v *jason.Object
	if len(opts.Payloads) > 0 || acl != nil {
		body, ctype, err := multipartBody(content, acl, opts.Payloads)
		if err != nil {
			return nil, err
		}
		v, err = s.doJason("POST", "/objects", query, body, ctype)
		if err != nil {
			return nil, err
		}
	} else {
		v, err = s.doJSONBody("POST", "/objects", query, content)
		if err != nil {
			return nil, err
		}
	}
	return s.decodeObject(v)
}

// Get fetches the full record for the object with the given handle:
// content, metadata, ACL, and payload descriptors. An unknown handle
// and a handle the caller may not read are both reported as
// ErrNotFound; the server does not tell them apart.
func (s *Session) Get(id string) (*Object, error) {
	h, err := s.NewHandle(id)
	if err != nil {
		return nil, err
	}
	v, err := s.doJason("GET", "/objects/"+h.ID, url.Values{"full": {"true"}}, nil, "")
	if err != nil {
		return nil, err
	}
	return s.decodeObject(v)
}

// GetContentAt fetches the subtree of an object's content selected by
// a JSON pointer. The result can be any JSON value, not only an
// object.
func (s *Session) GetContentAt(id, jsonPointer string) (interface{}, error) {
	h, err := s.NewHandle(id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	q := url.Values{"jsonPointer": {jsonPointer}}
	if err := s.stream(&buf, "/objects/"+h.ID, q); err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOptions adjust Update.
type UpdateOptions struct {
	// Content is the full replacement content, or, when JSONPointer is
	// set, the new value for that subtree. If nil (and JSONPointer is
	// empty) the snapshot's own content is resent, so the server never
	// receives a null body.
	Content interface{}
	// JSONPointer updates only the selected subtree. Mutually
	// exclusive with Payloads.
	JSONPointer string
	// Type changes the object's type name.
	Type string
	// DryRun validates without persisting.
	DryRun bool
	// Payloads are additional attachments. Attaching payloads resends
	// the full content alongside them; the server has no partial
	// multipart update.
	Payloads []Payload
	// PayloadToDelete names an attachment to remove.
	PayloadToDelete string
}

// Update writes changes to the object on the server and returns the
// new snapshot. Exactly one of three wire shapes is used: a
// JSON-pointer patch, a multipart upload when payloads are attached,
// or a plain JSON body. Setting both JSONPointer and Payloads is
// refused locally.
func (o *Object) Update(opts UpdateOptions) (*Object, error) {
	s := o.Handle.session
	if opts.JSONPointer != "" && len(opts.Payloads) > 0 {
		return nil, usageErrorf("a JSON-pointer update cannot also attach payloads")
	}

	query := url.Values{"full": {"true"}}
	if opts.Type != "" {
		query.Set("type", opts.Type)
	}
	if opts.DryRun {
		query.Set("dryRun", "true")
	}
	if opts.PayloadToDelete != "" {
		query.Set("payloadToDelete", opts.PayloadToDelete)
	}
	path := "/objects/" + o.Handle.ID

	if opts.JSONPointer != "" {
		if opts.Content == nil {
			return nil, usageErrorf("a JSON-pointer update needs the new subtree in Content")
		}
		query.Set("jsonPointer", opts.JSONPointer)
		v, err := s.doJSONBody("PUT", path, query, opts.Content)
		if err != nil {
			return nil, err
		}
		return s.decodeObject(v)
	}

	content := opts.Content
	if content == nil {
		content = o.Content
	}
	if len(opts.Payloads) > 0 {
		body, ctype, err := multipartBody(content, nil, opts.Payloads)
		if err != nil {
			return nil, err
		}
		v, err := s.doJason("PUT", path, query, body, ctype)
		if err != nil {
			return nil, err
		}
		return s.decodeObject(v)
	}
	v, err := s.doJSONBody("PUT", path, query, content)
	if err != nil {
		return nil, err
	}
	return s.decodeObject(v)
}

// UpdateACL replaces the object's access control list wholesale with
// the given reader and writer names and returns the new snapshot.
// There is no incremental add or remove; callers wanting that must
// read-modify-write the full lists themselves.
func (o *Object) UpdateACL(readers, writers []string, dryRun bool) (*Object, error) {
	s := o.Handle.session
	acl, err := s.resolveACL(&ACLNames{Readers: readers, Writers: writers})
	if err != nil {
		return nil, err
	}
	query := url.Values{"full": {"true"}}
	if dryRun {
		query.Set("dryRun", "true")
	}
	body, ctype, err := multipartBody(o.Content, acl, nil)
	if err != nil {
		return nil, err
	}
	v, err := s.doJason("PUT", "/objects/"+o.Handle.ID, query, body, ctype)
	if err != nil {
		return nil, err
	}
	return s.decodeObject(v)
}

// Delete removes the object with the given handle. Once an object is
// deleted its handle is never auto-assigned again; reusing it takes an
// explicit handle on a later Create.
func (s *Session) Delete(id string) error {
	h, err := s.NewHandle(id)
	if err != nil {
		return err
	}
	return s.doEmpty("DELETE", "/objects/"+h.ID, nil)
}

// Delete removes this object from the repository.
func (o *Object) Delete() error {
	return o.Handle.session.doEmpty("DELETE", "/objects/"+o.Handle.ID, nil)
}

// DeleteAt removes only the content subtree selected by jsonPointer;
// the object survives. The pointer's top-level key must exist in this
// snapshot's content. That check is a fast local guard against typos,
// not authoritative; the server decides what actually exists.
func (o *Object) DeleteAt(jsonPointer string) error {
	key, ok := topLevelKey(jsonPointer)
	if !ok {
		return usageErrorf("malformed JSON pointer %q", jsonPointer)
	}
	if _, present := o.Content[key]; !present {
		return usageErrorf("content has no top-level key %q", key)
	}
	q := url.Values{"jsonPointer": {jsonPointer}}
	return o.Handle.session.doEmpty("DELETE", "/objects/"+o.Handle.ID, q)
}

// ReadPayload copies the named attachment of the given object to w.
func (s *Session) ReadPayload(w io.Writer, id, name string) error {
	h, err := s.NewHandle(id)
	if err != nil {
		return err
	}
	q := url.Values{"payload": {name}}
	return s.stream(w, "/objects/"+h.ID, q)
}

// ReadPayload copies the named attachment to w.
func (o *Object) ReadPayload(w io.Writer, name string) error {
	q := url.Values{"payload": {name}}
	return o.Handle.session.stream(w, "/objects/"+o.Handle.ID, q)
}

// ExportPayload writes the named attachment to a local file.
func (o *Object) ExportPayload(name, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	err = o.ReadPayload(f, name)
	cerr := f.Close()
	if err != nil {
		return err
	}
	return cerr
}

// topLevelKey returns the first reference token of a JSON pointer,
// with the RFC 6901 escapes undone.
func topLevelKey(pointer string) (string, bool) {
	if !strings.HasPrefix(pointer, "/") {
		return "", false
	}
	key := pointer[1:]
	if i := strings.IndexByte(key, '/'); i >= 0 {
		key = key[:i]
	}
	key = strings.ReplaceAll(key, "~1", "/")
	key = strings.ReplaceAll(key, "~0", "~")
	return key, true
}

// decodeObject turns a full object record into a snapshot bound to
// this session.
func (s *Session) decodeObject(v *jason.Object) (*Object, error) {
	id, err := v.GetString("id")
	if err != nil || id == "" {
		return nil, &ServerError{StatusCode: http.StatusBadGateway,
			Message: "object response carried no id"}
	}
	o := &Object{Handle: Handle{ID: id, session: s}}
	o.Type, _ = v.GetString("type")
	if cv, err := v.GetValue("content"); err == nil {
		if b, err := cv.Marshal(); err == nil {
			var m map[string]interface{}
			if json.Unmarshal(b, &m) == nil && m != nil {
				o.Content = m
			}
		}
	}
	if md, err := v.GetObject("metadata"); err == nil {
		o.Metadata.CreatedOn, _ = md.GetInt64("createdOn")
		o.Metadata.CreatedBy, _ = md.GetString("createdBy")
		o.Metadata.ModifiedOn, _ = md.GetInt64("modifiedOn")
		o.Metadata.ModifiedBy, _ = md.GetString("modifiedBy")
		o.Metadata.TxnID, _ = md.GetInt64("txnId")
	}
	if parts, err := v.GetObjectArray("payloads"); err == nil {
		for _, p := range parts {
			var pi PayloadInfo
			pi.Name, _ = p.GetString("name")
			pi.MediaType, _ = p.GetString("mediaType")
			pi.Filename, _ = p.GetString("filename")
			pi.Size, _ = p.GetInt64("size")
			o.Payloads = append(o.Payloads, pi)
		}
	}
	if a, err := v.GetObject("acl"); err == nil {
		o.ACL.Readers, _ = a.GetStringArray("readers")
		o.ACL.Writers, _ = a.GetStringArray("writers")
	}
	return o, nil
}
