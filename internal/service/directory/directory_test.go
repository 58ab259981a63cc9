package directory

import (
	"errors"
	"testing"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

func TestSync(t *testing.T) {
	t.Parallel()

	messenger := testutil.NewMessenger(
		chat.User{ID: "U1", Username: "asha", Email: "Asha@Example.com"},
		chat.User{ID: "U2", Username: "ben", Email: "ben@example.com"},
	)
	employees := testutil.NewEmployees(
		frappe.Employee{Name: "EMP-1", EmployeeName: "Asha", UserID: "asha@example.com"},
		frappe.Employee{Name: "EMP-2", EmployeeName: "Chen", CompanyEmail: "chen@example.com"},
		frappe.Employee{Name: "EMP-3", EmployeeName: "Dev"},
	)
	store := testutil.NewStore(t)
	svc := New(messenger, employees, store)

	report, err := svc.Sync(t.Context())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	want := SyncReport{Linked: 2, Failed: []string{}, MissingInChat: []string{"chen@example.com"}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("Sync() mismatch (-want +got):\n%s", diff)
	}

	got, err := store.GetByEmail(t.Context(), "asha@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ChatUserID != "U1" || got.ChatUsername != "asha" {
		t.Errorf("GetByEmail() = %+v, want U1/asha", got)
	}
}

func TestSyncListFailure(t *testing.T) {
	t.Parallel()

	messenger := testutil.NewMessenger()
	messenger.Errors["users.list"] = errors.New("ratelimited")
	svc := New(messenger, testutil.NewEmployees(), testutil.NewStore(t))

	if _, err := svc.Sync(t.Context()); err == nil {
		t.Error("Sync() error = nil, want error")
	}
}

func TestConnect(t *testing.T) {
	t.Parallel()

	messenger := testutil.NewMessenger(chat.User{ID: "U9", Username: "zoe", Email: "zoe@example.com"})
	svc := New(messenger, testutil.NewEmployees(), testutil.NewStore(t))

	id, err := svc.Connect(t.Context(), "  ZOE@example.com ")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if id.Email != "zoe@example.com" || id.ChatUserID != "U9" {
		t.Errorf("Connect() = %+v", id)
	}

	if _, err := svc.Connect(t.Context(), "ghost@example.com"); !errors.Is(err, chat.ErrUserNotFound) {
		t.Errorf("Connect() error = %v, want ErrUserNotFound", err)
	}
}

func TestResolver(t *testing.T) {
	t.Parallel()

	messenger := testutil.NewMessenger(chat.User{ID: "U1", Email: "asha@example.com"})
	employees := testutil.NewEmployees(
		frappe.Employee{Name: "EMP-1", EmployeeName: "Asha", UserID: "asha@example.com"},
		frappe.Employee{Name: "EMP-2", EmployeeName: "Chen", UserID: "chen@example.com"},
	)
	store := testutil.NewStore(t)
	svc := New(messenger, employees, store)
	ctx := t.Context()

	emp, err := svc.EmployeeForChatUser(ctx, "U1")
	if err != nil {
		t.Fatalf("EmployeeForChatUser() error = %v", err)
	}
	if emp.Name != "EMP-1" {
		t.Errorf("EmployeeForChatUser() = %q, want EMP-1", emp.Name)
	}
	if _, err := store.GetByChatUserID(ctx, "U1"); err != nil {
		t.Errorf("identity not cached: %v", err)
	}

	id, err := svc.ChatUserForEmployee(ctx, "EMP-1")
	if err != nil || id != "U1" {
		t.Errorf("ChatUserForEmployee() = %q, %v, want U1", id, err)
	}
	lookups := len(messenger.Lookups)
	if _, err := svc.ChatUserForEmail(ctx, "asha@example.com"); err != nil {
		t.Fatal(err)
	}
	if len(messenger.Lookups) != lookups {
		t.Error("ChatUserForEmail() asked the workspace for a stored identity")
	}

	if _, err := svc.ChatUserForEmployee(ctx, "EMP-2"); !errors.Is(err, ErrNotLinked) {
		t.Errorf("ChatUserForEmployee() error = %v, want ErrNotLinked", err)
	}
	if got := svc.Mention(ctx, "EMP-2", "Chen"); got != "Chen" {
		t.Errorf("Mention() = %q, want Chen", got)
	}
	if got := svc.Mention(ctx, "EMP-1", "Asha"); got != "<@U1>" {
		t.Errorf("Mention() = %q, want <@U1>", got)
	}

	if _, err := svc.EmployeeForChatUser(ctx, "U404"); !errors.Is(err, chat.ErrUserNotFound) {
		t.Errorf("EmployeeForChatUser() error = %v, want ErrUserNotFound", err)
	}
}
