// Package credstore persists the delegated credential cache across process
// restarts.
//
// The cache is one small JSON file holding at most one active account with
// its access/refresh material. Writes are atomic (temp file then rename) and
// serialized within the process, and the file is restricted to owner
// read/write. The cache is never deleted by taskbridge; revocation happens
// at the identity provider.
package credstore
