package keyboard

import "testing"

func TestGrid(t *testing.T) {
	b := NewBuilder()
	if !b.Empty() {
		t.Fatal("new builder is not empty")
	}

	b.Grid(3,
		Button("1", "a"), Button("2", "b"), Button("3", "c"),
		Button("4", "d"), Button("5", "e"),
	).Row(URLButton("site", "https://example.com"))

	rows := b.Build().InlineKeyboard
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(rows[0]) != 3 || len(rows[1]) != 2 || len(rows[2]) != 1 {
		t.Errorf("row sizes = %d %d %d", len(rows[0]), len(rows[1]), len(rows[2]))
	}
	if rows[1][1].CallbackData != "e" || rows[2][0].URL != "https://example.com" {
		t.Errorf("unexpected buttons %+v", rows)
	}
}
