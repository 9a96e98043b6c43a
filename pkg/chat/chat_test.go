package chat_test

import (
	"fmt"
	"testing"

	"github.com/fieldlens/go-fieldlens/pkg/chat"
)

func TestLog(t *testing.T) {
	t.Run("append and read back", func(t *testing.T) {
		l := chat.NewLog()
		l.Add(chat.RoleUser, "site-42.jpg", false)
		l.Add(chat.RoleAssistant, "ok", true)

		entries := l.Entries()
		if len(entries) != 2 {
			t.Fatalf("entries = %d", len(entries))
		}
		if entries[1].Role != chat.RoleAssistant || entries[1].Text != "ok" {
			t.Errorf("unexpected entry %+v", entries[1])
		}
		if !entries[1].HasAudio {
			t.Error("expected audio flag")
		}
		if entries[0].ID == entries[1].ID {
			t.Error("ids should be unique")
		}
	})

	t.Run("notifies on append", func(t *testing.T) {
		l := chat.NewLog()
		var got []chat.Entry
		l.OnAppend = func(e chat.Entry) { got = append(got, e) }

		l.Add(chat.RoleSystem, "camera ready", false)
		if len(got) != 1 || got[0].Text != "camera ready" {
			t.Errorf("callback entries = %+v", got)
		}
	})

	t.Run("last by role", func(t *testing.T) {
		l := chat.NewLog()
		l.Add(chat.RoleUser, "first", false)
		l.Add(chat.RoleAssistant, "reply", false)
		l.Add(chat.RoleUser, "second", false)

		e, ok := l.Last(chat.RoleUser)
		if !ok || e.Text != "second" {
			t.Errorf("Last(user) = %+v, %v", e, ok)
		}
		if _, ok := chat.NewLog().Last(chat.RoleUser); ok {
			t.Error("empty log should have no last entry")
		}
	})

	t.Run("caps the buffer", func(t *testing.T) {
		l := chat.NewLog()
		for i := 0; i < 250; i++ {
			l.Add(chat.RoleUser, fmt.Sprintf("m%d", i), false)
		}
		entries := l.Entries()
		if len(entries) != 200 {
			t.Fatalf("entries = %d, want 200", len(entries))
		}
		if entries[len(entries)-1].Text != "m249" {
			t.Errorf("newest entry = %q", entries[len(entries)-1].Text)
		}
	})
}
