package doro

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// An ACL is the wire-format access control record on an object: lists
// of server-internal principal IDs. The server enforces it; the client
// only carries it.
type ACL struct {
	Readers []string `json:"readers"`
	Writers []string `json:"writers"`
}

// ACLNames is the request-side access control list, given as
// human-readable user or group names. Names are resolved to principal
// IDs before transmission.
type ACLNames struct {
	Readers []string
	Writers []string
}

// ResolveNames maps principal names to their server IDs. Each name is
// looked up as a user's username or a group's name, first match wins.
// Resolutions are cached for the life of the Session, so resolving the
// same name twice sends at most one query. A name matching nothing
// fails the whole call with an error matching ErrUnknownPrincipal;
// a typo must never silently narrow an ACL.
func (s *Session) ResolveNames(names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := s.resolveName(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResolveID maps a principal ID back to its user or group name,
// fetching the principal's object on a cache miss.
func (s *Session) ResolveID(id string) (string, error) {
	s.mu.Lock()
	name, ok := s.idToName[id]
	s.mu.Unlock()
	if ok {
		return name, nil
	}
	o, err := s.Get(id)
	if err != nil {
		return "", err
	}
	name, _ = o.Content["username"].(string)
	if name == "" {
		name, _ = o.Content["groupName"].(string)
	}
	if name == "" {
		return "", &UnknownPrincipalError{Name: id}
	}
	s.cachePrincipal(name, id)
	return name, nil
}

func (s *Session) resolveName(name string) (string, error) {
	s.mu.Lock()
	id, ok := s.nameToID[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	query := fmt.Sprintf(`(type:"User" AND /username:%q) OR (type:"Group" AND /groupName:%q)`, name, name)
	handles, err := s.SearchIDs(query, &SearchOptions{PageSize: 1})
	if err != nil {
		return "", err
	}
	if len(handles) == 0 {
		return "", &UnknownPrincipalError{Name: name}
	}
	id = handles[0].ID
	s.cachePrincipal(name, id)
	s.log.WithFields(logrus.Fields{"name": name, "id": id}).Debug("resolved principal")
	return id, nil
}

func (s *Session) cachePrincipal(name, id string) {
	s.mu.Lock()
	s.nameToID[name] = id
	s.idToName[id] = name
	s.mu.Unlock()
}

// resolveACL turns reader/writer names into the wire ACL. A nil input
// yields a nil ACL, meaning none is sent.
func (s *Session) resolveACL(names *ACLNames) (*ACL, error) {
	if names == nil {
		return nil, nil
	}
	readers, err := s.ResolveNames(names.Readers)
	if err != nil {
		return nil, err
	}
	writers, err := s.ResolveNames(names.Writers)
	if err != nil {
		return nil, err
	}
	return &ACL{Readers: readers, Writers: writers}, nil
}
