// Package directory links ERP employees to chat accounts by email.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/xslog"
)

// ErrNotLinked means the employee or email has no chat account.
var ErrNotLinked = errors.New("no chat account linked")

type SyncReport struct {
	Linked int `json:"linked"`
	// Failed lists emails whose identity could not be stored.
	Failed []string `json:"failed"`
	// MissingInChat lists active employees without a chat account.
	MissingInChat []string `json:"missing_in_chat"`
}

type Service struct {
	chat      chat.Messenger
	employees frappe.EmployeeService
	store     storage.IdentityStore
	now       func() time.Time
}

func New(messenger chat.Messenger, employees frappe.EmployeeService, store storage.IdentityStore) *Service {
	return &Service{
		chat:      messenger,
		employees: employees,
		store:     store,
		now:       time.Now,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Sync links every chat user with an email address. Individual failures
// are reported, not returned.
func (s *Service) Sync(ctx context.Context) (SyncReport, error) {
	logger := xslog.FromContext(ctx)

	users, err := s.chat.ListUsers(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("listing chat users: %w", err)
	}

	report := SyncReport{Failed: []string{}, MissingInChat: []string{}}
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		email := normalize(u.Email)
		if email == "" {
			continue
		}
		seen[email] = struct{}{}
		if err := s.link(ctx, email, u); err != nil {
			logger.WarnContext(ctx, "linking chat user", xslog.ChatUserID(u.ID), xslog.Email(email), xslog.Error(err))
			report.Failed = append(report.Failed, email)
			continue
		}
		report.Linked++
	}

	employees, err := s.employees.Active(ctx)
	if err != nil {
		logger.WarnContext(ctx, "listing active employees, skipping missing report", xslog.Error(err))
	}
	for _, e := range employees {
		email := normalize(e.Email())
		if email == "" {
			continue
		}
		if _, ok := seen[email]; !ok {
			report.MissingInChat = append(report.MissingInChat, email)
		}
	}

	logger.InfoContext(ctx, "directory synced", xslog.SyncGroup(report.Linked, len(report.Failed), len(report.MissingInChat)))
	return report, nil
}

// Connect links the chat account registered under email.
func (s *Service) Connect(ctx context.Context, email string) (storage.LinkedIdentity, error) {
	email = normalize(email)
	if email == "" {
		return storage.LinkedIdentity{}, errors.New("email is required")
	}
	u, err := s.chat.LookupByEmail(ctx, email)
	if err != nil {
		return storage.LinkedIdentity{}, err
	}
	if err := s.link(ctx, email, u); err != nil {
		return storage.LinkedIdentity{}, err
	}
	return s.store.GetByEmail(ctx, email)
}

func (s *Service) link(ctx context.Context, email string, u chat.User) error {
	return s.store.Upsert(ctx, storage.LinkedIdentity{
		Email:        email,
		ChatUserID:   u.ID,
		ChatUsername: u.Username,
		UpdatedAt:    s.now(),
	})
}

// EmployeeForChatUser resolves a chat user to the employee record.
func (s *Service) EmployeeForChatUser(ctx context.Context, chatUserID string) (frappe.Employee, error) {
	email, err := s.emailForChatUser(ctx, chatUserID)
	if err != nil {
		return frappe.Employee{}, err
	}
	emp, err := s.employees.ByEmail(ctx, email)
	if err != nil {
		return frappe.Employee{}, fmt.Errorf("no employee found for chat user %s: %w", chatUserID, err)
	}
	return emp, nil
}

func (s *Service) emailForChatUser(ctx context.Context, chatUserID string) (string, error) {
	id, err := s.store.GetByChatUserID(ctx, chatUserID)
	if err == nil {
		return id.Email, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	email, err := s.chat.UserEmail(ctx, chatUserID)
	if err != nil {
		return "", err
	}
	email = normalize(email)
	if err := s.link(ctx, email, chat.User{ID: chatUserID, Email: email}); err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "caching chat identity", xslog.ChatUserID(chatUserID), xslog.Error(err))
	}
	return email, nil
}

// ChatUserForEmail returns the linked chat user id, asking the chat
// workspace when nothing is stored yet.
func (s *Service) ChatUserForEmail(ctx context.Context, email string) (string, error) {
	email = normalize(email)
	if email == "" {
		return "", ErrNotLinked
	}

	id, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		return id.ChatUserID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	u, err := s.chat.LookupByEmail(ctx, email)
	if errors.Is(err, chat.ErrUserNotFound) {
		return "", fmt.Errorf("%s: %w", email, ErrNotLinked)
	}
	if err != nil {
		return "", err
	}
	if err := s.link(ctx, email, u); err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "caching chat identity", xslog.Email(email), xslog.Error(err))
	}
	return u.ID, nil
}

func (s *Service) ChatUserForEmployee(ctx context.Context, employeeID string) (string, error) {
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return "", err
	}
	return s.ChatUserForEmail(ctx, emp.Email())
}

// Mention renders a mention for employeeID, falling back to name when the
// employee has no chat account or the lookup fails.
func (s *Service) Mention(ctx context.Context, employeeID, name string) string {
	id, err := s.ChatUserForEmployee(ctx, employeeID)
	if err != nil && !errors.Is(err, ErrNotLinked) {
		xslog.FromContext(ctx).WarnContext(ctx, "resolving chat user", xslog.EmployeeID(employeeID), xslog.Error(err))
	}
	return render.Mention(id, name)
}
