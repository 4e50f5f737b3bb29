package fhe

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var aclPrefix = []byte("acl/")

// ACL is the persistent access control list of the backend: the set of
// (handle, principal) pairs allowed to use or decrypt a handle.
type ACL struct {
	db db.Database
}

// NewACL returns an ACL stored in database.
func NewACL(database db.Database) *ACL {
	return &ACL{db: database}
}

func aclKey(h types.Handle, principal common.Address) []byte {
	return append(h.Bytes(), principal.Bytes()...)
}

// Allow grants principal access to h. Granting twice is not an error.
func (a *ACL) Allow(h types.Handle, principal common.Address) error {
	if h.IsZero() {
		return fmt.Errorf("%w: empty handle", ErrUnknownHandle)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(a.db.WriteTx(), aclPrefix)
	if err := wTx.Set(aclKey(h, principal), []byte{1}); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// IsAllowed reports whether principal has been granted access to h.
func (a *ACL) IsAllowed(h types.Handle, principal common.Address) bool {
	_, err := prefixeddb.NewPrefixedReader(a.db, aclPrefix).Get(aclKey(h, principal))
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return false
	}
	return err == nil
}
