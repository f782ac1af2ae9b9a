package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/models"
	"github.com/starford/tagshelf/internal/storage"
	"github.com/starford/tagshelf/internal/testutil"
)

func TestArtifactNames(t *testing.T) {
	tests := []struct{ got, want string }{
		{FolderFile(""), "folders/root.json"},
		{FolderFile("root"), "folders/folder-root.json"},
		{FolderFile("A/B"), "folders/folder-A%2FB.json"},
		{FolderFile("A B"), "folders/folder-A%20B.json"},
		{NoteFile("My Note.html"), "notes/My%20Note.html.json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestWrite_RoundTripAndPrune(t *testing.T) {
	c, _ := collect(t, map[string]string{
		"a.html": testutil.NoteHTML("Alpha", "A/B, A/C", ""),
		"b.html": testutil.NoteHTML("Beta", "A/B", ""),
	}, Options{})
	out, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := out.Write("notes/stale.html.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(context.Background(), out, c, nil); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var root models.FolderNode
	if err := ReadJSON(out, StructureFile, &root); err != nil {
		t.Fatalf("read structure: %v", err)
	}
	a := root.Children["A"]
	if a == nil || a.TotalUniqueFiles != 2 || len(a.Children) != 2 {
		t.Fatalf("structure A = %+v", a)
	}

	var page models.FolderPage
	if err := ReadJSON(out, FolderFile("A"), &page); err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	if got := keysOf(page.Files); !reflect.DeepEqual(got, []string{"a.html", "b.html"}) || page.Total != 2 {
		t.Errorf("bundle A = %v total %d", got, page.Total)
	}

	var note models.Note
	if err := ReadJSON(out, NoteFile("a.html"), &note); err != nil {
		t.Fatalf("read note: %v", err)
	}
	if note.Metadata.Title != "Alpha" || note.Checksum != c.Notes["a.html"].Checksum {
		t.Errorf("note = %+v", note)
	}

	if _, err := out.Read("notes/stale.html.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale artifact still present: %v", err)
	}
}

func TestReadJSON_Malformed(t *testing.T) {
	out, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := out.Write(StructureFile, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	var root models.FolderNode
	if err := ReadJSON(out, StructureFile, &root); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}
