package tenantctx

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
)

func TestConnPrefersBoundHandle(t *testing.T) {
	main, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("open main: %v", err)
	}
	branch, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("open branch: %v", err)
	}

	ctx := context.Background()
	if Conn(ctx, main) != main {
		t.Fatal("an unscoped context resolves to main")
	}

	ctx = WithScope(ctx, &Scope{Conn: branch})
	if Conn(ctx, main) != branch {
		t.Fatal("a bound scope resolves to its branch handle")
	}
}

func TestScopeKey(t *testing.T) {
	ctx := context.Background()
	if _, ok := ScopeKey(ctx); ok {
		t.Fatal("no key without a scope")
	}

	id := snowflake.ID(42)
	ctx = WithScope(ctx, &Scope{Store: &storedomain.Store{ID: id}, StoreID: &id})
	key, ok := ScopeKey(ctx)
	if !ok || key != id {
		t.Fatalf("expected key %v, got %v (ok=%v)", id, key, ok)
	}

	// Overview mode carries no key.
	ctx = WithScope(context.Background(), &Scope{AllBranches: true})
	if _, ok := ScopeKey(ctx); ok {
		t.Fatal("overview mode must not scope queries")
	}
}

func TestConcurrentScopesAreIndependent(t *testing.T) {
	a := snowflake.ID(1)
	b := snowflake.ID(2)

	ctxA := WithScope(context.Background(), &Scope{StoreID: &a})
	ctxB := WithScope(context.Background(), &Scope{StoreID: &b})

	keyA, _ := ScopeKey(ctxA)
	keyB, _ := ScopeKey(ctxB)
	if keyA != a || keyB != b {
		t.Fatalf("scopes leaked across contexts: %v / %v", keyA, keyB)
	}
}
