package tenant

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestClassifyErrorByNumber(t *testing.T) {
	for _, number := range []uint16{1044, 1045, 1227} {
		err := classifyError("root", &mysql.MySQLError{Number: number, Message: "denied"})
		if !IsPrivilegeErr(err) {
			t.Errorf("error %d: expected privilege classification, got %v", number, err)
		}
	}
}

func TestClassifyErrorOtherMySQLErrorsPassThrough(t *testing.T) {
	original := &mysql.MySQLError{Number: 1049, Message: "Unknown database"}
	err := classifyError("root", original)
	if IsPrivilegeErr(err) {
		t.Fatalf("error 1049 must not classify as a privilege error")
	}
	if !errors.Is(err, original) {
		t.Fatalf("expected the original error back, got %v", err)
	}
}

func TestClassifyErrorWrappedNumber(t *testing.T) {
	wrapped := fmt.Errorf("exec failed: %w", &mysql.MySQLError{Number: 1044, Message: "denied"})
	if !IsPrivilegeErr(classifyError("root", wrapped)) {
		t.Fatal("expected classification through a wrapped chain")
	}
}

func TestClassifyErrorTextFallback(t *testing.T) {
	err := classifyError("root", errors.New("Access denied for user 'root'@'%' to database 'pos_branch_x'"))
	if !IsPrivilegeErr(err) {
		t.Fatalf("expected text-sniffed privilege error, got %v", err)
	}

	plain := classifyError("root", errors.New("connection refused"))
	if IsPrivilegeErr(plain) {
		t.Fatal("unrelated errors must pass through unchanged")
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if classifyError("root", nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestPrivilegeErrorRemediation(t *testing.T) {
	err := &PrivilegeError{User: "pos_app"}
	remediation := err.Remediation()
	for _, want := range []string{"GRANT CREATE", "pos_app", DatabasePrefix} {
		if !strings.Contains(remediation, want) {
			t.Errorf("remediation %q missing %q", remediation, want)
		}
	}
}
