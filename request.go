package doro

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/sirupsen/logrus"
)

// This file is the request/response adapter shared by every operation:
// it builds outgoing requests, injects the bearer token, and turns
// responses into decoded JSON, raw bytes, or a classified error.

// do performs an HTTP request with the session's client, adding the
// Authorization header unless the session is anonymous. Transport
// failures are wrapped so they match ErrConnection.
func (s *Session) do(req *http.Request) (*http.Response, error) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &connectionError{err}
	}
	return resp, nil
}

func (s *Session) newRequest(method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	u := s.HostURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// doJason sends a request and decodes the JSON response. A success
// response with an empty body decodes as an empty object.
func (s *Session) doJason(method, path string, query url.Values, body io.Reader, contentType string) (*jason.Object, error) {
	req, err := s.newRequest(method, path, query, body, contentType)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("request")
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, classify(resp)
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &connectionError{err}
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return jason.NewObjectFromBytes([]byte("{}"))
	}
	return jason.NewObjectFromBytes(buf)
}

// doForm is doJason for urlencoded form bodies (the auth endpoints).
func (s *Session) doForm(method, path string, query, form url.Values) (*jason.Object, error) {
	body := strings.NewReader(form.Encode())
	return s.doJason(method, path, query, body, "application/x-www-form-urlencoded")
}

// doJSONBody is doJason for a JSON-encoded body.
func (s *Session) doJSONBody(method, path string, query url.Values, v interface{}) (*jason.Object, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return s.doJason(method, path, query, bytes.NewReader(buf), "application/json")
}

// doEmpty sends a request and requires a success response with an
// empty body. Anything in the body of a success response is reported
// as an error (used by delete).
func (s *Session) doEmpty(method, path string, query url.Values) error {
	req, err := s.newRequest(method, path, query, nil, "")
	if err != nil {
		return err
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return classify(resp)
	}
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if len(bytes.TrimSpace(buf)) > 0 {
		return &ServerError{StatusCode: resp.StatusCode,
			Message: "unexpected response body: " + string(buf)}
	}
	return nil
}

// stream copies a raw (non-JSON) response body to w. Used for payload
// downloads.
func (s *Session) stream(w io.Writer, path string, query url.Values) error {
	req, err := s.newRequest("GET", path, query, nil, "")
	if err != nil {
		return err
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return classify(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// classify turns an error response into a *ServerError, digging the
// server's message field out of the body when there is one. The server
// message is passed through verbatim.
func classify(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var msg string
	if v, err := jason.NewObjectFromBytes(buf); err == nil {
		msg, _ = v.GetString("message")
	}
	if msg == "" {
		msg = strings.TrimSpace(string(buf))
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: msg}
}

// multipartBody builds the multipart form used when a create or update
// carries payloads or an ACL. The JSON content goes under the "content"
// field, the resolved ACL (if any) under "acl", and each payload
// becomes a named file part with its declared media type. Every local
// file is closed before returning, on error paths too.
func multipartBody(content interface{}, acl *ACL, payloads []Payload) (*bytes.Buffer, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	cj, err := json.Marshal(content)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("content", string(cj)); err != nil {
		return nil, "", err
	}
	if acl != nil {
		aj, err := json.Marshal(acl)
		if err != nil {
			return nil, "", err
		}
		if err := w.WriteField("acl", string(aj)); err != nil {
			return nil, "", err
		}
	}
	for _, p := range payloads {
		if err := writePayloadPart(w, p); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writePayloadPart(w *multipart.Writer, p Payload) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		`form-data; name="`+escapeQuotes(p.Name)+`"; filename="`+escapeQuotes(filepath.Base(p.Path))+`"`)
	h.Set("Content-Type", p.MediaType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	f, err := p.open()
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(part, f)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
