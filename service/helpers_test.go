package service

import (
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/fhe/mock"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/storage"
)

func newTestLedger(c *qt.C) (*ledger.Ledger, *ethereum.SignKeys) {
	owner := ethereum.NewSignKeys()
	c.Assert(owner.Generate(), qt.IsNil)
	backend, err := mock.New(memdb.New(), nil, fhe.Options{
		Domain: fhe.DefaultDomain(31337, common.HexToAddress("0xd0")),
	})
	c.Assert(err, qt.IsNil)
	stg := storage.New(memdb.New())
	c.Cleanup(stg.Close)
	l, err := ledger.New(stg, backend, ledger.Options{Owner: owner.Address()})
	c.Assert(err, qt.IsNil)
	return l, owner
}
