/*

Package doro is a client for a digital object repository server.

A digital object is a JSON document (the "content") stored under a
globally unique handle of the form prefix/suffix. Objects may carry
named binary attachments called payloads, a per-object access control
list, and a type name identifying the JSON Schema the server validates
the content against. All of that machinery lives on the server; this
package only builds requests and interprets responses.

Use Open to authenticate and get a Session, or OpenAnonymous for the
read-only access the server grants to everyone. Every other call hangs
off the Session. Entity operations return Object values, which are
point-in-time snapshots: the client never mutates an Object after it is
built, and operations that change server state hand back a fresh
snapshot. Close a Session to revoke its token, or use WithSession to
have the revoke happen on every exit path.

A Session may be shared between goroutines. There is no retry logic
anywhere: every failure, local or remote, is returned to the caller.

*/
package doro
