package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, "glpat-test", 5*time.Second)
}

func TestAuthSendsPrivateToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("PRIVATE-TOKEN"); got != "glpat-test" {
			t.Errorf("PRIVATE-TOKEN = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(User{ID: 1, Username: "alice", Name: "Alice"})
	})

	user, err := c.Auth(context.Background())
	if err != nil {
		t.Fatalf("Auth: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q", user.Username)
	}
}

func TestAuthRejectedToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "401 Unauthorized"}`, http.StatusUnauthorized)
	})

	if _, err := c.Auth(context.Background()); err == nil {
		t.Error("expected error for 401")
	}
}

func TestProjectEscapesPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/acme%2Fwidgets" {
			t.Errorf("escaped path = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Project{ID: 7, Name: "widgets", PathWithNamespace: "acme/widgets"})
	})

	project, err := c.Project(context.Background(), "acme/widgets")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if project.ID != 7 {
		t.Errorf("ID = %d", project.ID)
	}
}

func TestListIssuesPaginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects/7/issues" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("per_page = %q", got)
		}

		// A full first page, then a short second page ends iteration.
		var issues []*Issue
		switch r.URL.Query().Get("page") {
		case "1":
			for i := 1; i <= 100; i++ {
				issues = append(issues, &Issue{ID: i, IID: i, Title: fmt.Sprintf("issue %d", i)})
			}
		case "2":
			issues = []*Issue{{ID: 101, IID: 101, Title: "issue 101"}}
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(issues)
	})

	issues, err := c.ListIssues(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 101 {
		t.Errorf("len = %d, want 101", len(issues))
	}
	if issues[100].IID != 101 {
		t.Errorf("last iid = %d, want 101", issues[100].IID)
	}
}

func TestListIssueNotesParsesSystemFlag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects/7/issues/3/notes" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": 1, "body": "changed the description", "system": true, "author": {"id": 1}},
			{"id": 2, "body": "a real comment", "system": false, "author": {"id": 2}}
		]`)
	})

	notes, err := c.ListIssueNotes(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("ListIssueNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d, want 2", len(notes))
	}
	if !notes[0].System || notes[1].System {
		t.Errorf("system flags = %v, %v", notes[0].System, notes[1].System)
	}
	if notes[1].Author.ID != 2 {
		t.Errorf("author id = %d", notes[1].Author.ID)
	}
}

func TestListLabelsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := c.ListLabels(context.Background(), 7); err == nil {
		t.Error("expected error for 500")
	}
}
