package doro

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/certifi/gocertifi"
	"github.com/sirupsen/logrus"
)

// A Session represents a connection with a digital object repository.
// It can be shared between multiple goroutines.
//
// A Session opened with Open holds a bearer token until Close revokes
// it. Operations against a closed Session are not detected locally;
// the server rejects them with an auth error.
type Session struct {
	// HostURL is the base URL of the repository, for example
	// "https://repo.example.edu".
	HostURL string

	// Prefix is the handle prefix this repository instance mints
	// under, learned from the server's design endpoint at open time.
	Prefix string

	// Username is the authenticated principal. Empty for anonymous
	// sessions.
	Username string

	token    string
	client   *http.Client
	insecure bool
	log      logrus.FieldLogger

	// two-way principal name/ID cache, see acl.go
	mu       sync.Mutex
	nameToID map[string]string
	idToName map[string]string
}

// An Option adjusts how a Session is opened.
type Option func(*Session)

// SkipVerify disables TLS certificate verification. Only for test
// servers with self-signed certificates.
func SkipVerify() Option {
	return func(s *Session) { s.insecure = true }
}

// WithLogger directs the session's debug logging to l. By default
// nothing is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithHTTPClient replaces the underlying HTTP client. Mostly useful in
// tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

func newSession(hostURL string, opts ...Option) (*Session, error) {
	s := &Session{
		HostURL:  strings.TrimSuffix(hostURL, "/"),
		nameToID: make(map[string]string),
		idToName: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	if s.client == nil {
		tlsconf := &tls.Config{}
		if s.insecure {
			tlsconf.InsecureSkipVerify = true
		} else {
			pool, err := gocertifi.CACerts()
			if err != nil {
				return nil, err
			}
			tlsconf.RootCAs = pool
		}
		s.client = &http.Client{
			// arbitrary, just so we don't hang indefinitely should
			// the server never close the connection
			Timeout:   10 * time.Minute,
			Transport: &http.Transport{TLSClientConfig: tlsconf},
		}
	}
	return s, nil
}

// Open authenticates against the repository at hostURL with the
// password grant and returns a live Session. It also reads the
// server's design endpoint to learn the handle prefix this instance
// mints under. Bad credentials come back as an error matching ErrAuth;
// an unreachable host as one matching ErrConnection.
func Open(hostURL, username, password string, opts ...Option) (*Session, error) {
	s, err := newSession(hostURL, opts...)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	v, err := s.doForm("POST", "/auth/token", url.Values{"full": {"true"}}, form)
	if err != nil {
		return nil, err
	}
	s.token, _ = v.GetString("access_token")
	if s.token == "" {
		return nil, &ServerError{StatusCode: http.StatusUnauthorized,
			Message: "token response carried no access_token"}
	}
	s.Username = username
	if name, err := v.GetString("username"); err == nil && name != "" {
		s.Username = name
	}
	if err := s.loadDesign(); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"host":   s.HostURL,
		"user":   s.Username,
		"prefix": s.Prefix,
	}).Debug("session opened")
	return s, nil
}

// OpenAnonymous returns a Session with no token. Only reads the
// server's anonymous ACL allows will succeed.
func OpenAnonymous(hostURL string, opts ...Option) (*Session, error) {
	s, err := newSession(hostURL, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.loadDesign(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithSession opens a Session, runs body, and then revokes the token
// no matter how body exited. An error from body wins over an error
// from the revoke.
func WithSession(hostURL, username, password string, body func(*Session) error, opts ...Option) error {
	s, err := Open(hostURL, username, password, opts...)
	if err != nil {
		return err
	}
	err = body(s)
	cerr := s.Close()
	if err != nil {
		return err
	}
	return cerr
}

// Close revokes the session's token on the server. The token is kept
// in memory afterward, so later calls on the Session (including a
// second Close) are rejected by the server with an auth error rather
// than being masked locally.
func (s *Session) Close() error {
	if s.token == "" {
		// anonymous sessions have nothing to revoke
		return nil
	}
	_, err := s.doForm("POST", "/auth/revoke", nil, url.Values{"token": {s.token}})
	return err
}

// TokenInfo is the server's report on a bearer token.
type TokenInfo struct {
	Active   bool
	Username string
	Claims   *jason.Object // the full introspection response
}

// Introspect asks the server about the session's token.
func (s *Session) Introspect() (TokenInfo, error) {
	var info TokenInfo
	v, err := s.doForm("POST", "/auth/introspect", nil, url.Values{"token": {s.token}})
	if err != nil {
		return info, err
	}
	info.Active, _ = v.GetBoolean("active")
	info.Username, _ = v.GetString("username")
	info.Claims = v
	return info, nil
}

// loadDesign fetches the instance configuration and records the handle
// prefix the server mints under.
func (s *Session) loadDesign() error {
	v, err := s.doJason("GET", "/design", nil, nil, "")
	if err != nil {
		return err
	}
	prefix, err := v.GetString("handleMintingConfig", "prefix")
	if err != nil {
		return &ServerError{StatusCode: http.StatusBadGateway,
			Message: "design response carried no handle prefix"}
	}
	s.Prefix = prefix
	return nil
}
