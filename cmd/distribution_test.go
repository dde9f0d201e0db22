package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func Test_WriteClaims(t *testing.T) {
	out := filepath.Join(t.TempDir(), "claims.csv")

	claims := []*storage.Claim{
		{Id: "c1", Address: "addr_a", Amount: "600", Status: storage.ClaimStatus_Claimed, BatchId: "b0", TransactionId: "tx1"},
		{Id: "c2", Address: "addr_b", Amount: "400", Status: storage.ClaimStatus_Pending, BatchId: "b1"},
	}

	err := writeClaims(claims, out)
	assert.Nil(t, err)

	raw, err := os.ReadFile(out)
	assert.Nil(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, 3, len(lines))
	assert.Equal(t, "claim_id,address,amount,status,batch_id,transaction_id", lines[0])
	assert.Equal(t, "c1,addr_a,600,CLAIMED,b0,tx1", lines[1])
	assert.Equal(t, "c2,addr_b,400,PENDING,b1,", lines[2])
}
