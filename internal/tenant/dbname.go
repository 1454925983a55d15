package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/slug"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
)

// DatabasePrefix is shared by every branch database, including the
// scratch databases used by the provisioning capability probe, so a
// single GRANT pattern covers them all.
const DatabasePrefix = "pos_branch_"

var safeDatabaseName = regexp.MustCompile(`^[a-z0-9_]+$`)

// DatabaseName derives the deterministic database name of a branch:
// prefix plus the store code (or ID when absent) lowercased with every
// non-alphanumeric run collapsed to an underscore.
func DatabaseName(store *storedomain.Store) string {
	source := strings.TrimSpace(store.Code)
	if source == "" {
		source = store.ID.String()
	}
	return DatabasePrefix + slugify(source)
}

// ScratchDatabaseName names a throwaway database for the capability
// probe. Time-based so concurrent probes do not collide.
func ScratchDatabaseName() string {
	return fmt.Sprintf("%stest_%d", DatabasePrefix, time.Now().Unix())
}

func slugify(raw string) string {
	return strings.ReplaceAll(slug.Make(raw), "-", "_")
}

// validDatabaseName guards identifiers before they are spliced into
// CREATE/DROP statements, which cannot be parameterized.
func validDatabaseName(name string) bool {
	return name != "" && safeDatabaseName.MatchString(name)
}
