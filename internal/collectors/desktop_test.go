package collectors_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"applister/internal/collectors"
)

func writeDesktopFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestDesktopEntryCollector(t *testing.T) {
	t.Run("parses launchers and skips invalid ones", func(t *testing.T) {
		dir := t.TempDir()
		writeDesktopFile(t, dir, "gimp.desktop", `# GIMP launcher
[Desktop Entry]
Name[de]=GIMP Bildbearbeitung
Name=GNU Image Manipulation Program
Type=Application
Exec=gimp-2.10 %U

[Desktop Action new]
Name=New Window
`)
		writeDesktopFile(t, dir, "foo.desktop", "[Desktop Entry]\nName=Foo\nType=Application\n")
		writeDesktopFile(t, dir, "hidden.desktop", "[Desktop Entry]\nName=Hidden App\nType=Application\nHidden=true\n")
		writeDesktopFile(t, dir, "link.desktop", "[Desktop Entry]\nName=Docs\nType=Link\nURL=https://example.com\n")
		writeDesktopFile(t, dir, "noname.desktop", "[Desktop Entry]\nType=Application\n")
		writeDesktopFile(t, dir, "readme.txt", "[Desktop Entry]\nName=Not A Launcher\nType=Application\n")
		writeDesktopFile(t, filepath.Join(dir, "kde"), "konsole.desktop", "[Desktop Entry]\nName=Konsole\nType=application\n")

		entries, err := collectors.NewDesktopEntryCollector("linux", []string{dir}, nil).Collect(context.Background())
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}

		got := map[string]string{}
		for _, e := range entries {
			got[e.Name] = e.Origin
		}
		if len(got) != 3 {
			t.Fatalf("got %d entries, want 3: %v", len(got), got)
		}
		if origin, ok := got["GNU Image Manipulation Program"]; !ok || origin != "gimp-2.10 %U" {
			t.Errorf("gimp entry missing or wrong origin %q", origin)
		}
		if _, ok := got["Foo"]; !ok {
			t.Error("minimal launcher Foo missing")
		}
		if _, ok := got["Konsole"]; !ok {
			t.Error("launcher in a subdirectory missing")
		}
	})

	t.Run("excluded launchers are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeDesktopFile(t, dir, "foo.desktop", "[Desktop Entry]\nName=Foo\nType=Application\n")
		writeDesktopFile(t, dir, "slack-url-handler.desktop", "[Desktop Entry]\nName=Slack URL\nType=Application\n")
		writeDesktopFile(t, filepath.Join(dir, "wine"), "notepad.desktop", "[Desktop Entry]\nName=Notepad\nType=Application\n")

		exclude := collectors.NewGlobMatcher([]string{"*-url-handler.desktop", "wine/*"})
		entries, err := collectors.NewDesktopEntryCollector("linux", []string{dir}, exclude).Collect(context.Background())
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Name != "Foo" {
			t.Errorf("entries = %+v, want only Foo", entries)
		}
	})

	t.Run("missing directories are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeDesktopFile(t, dir, "foo.desktop", "[Desktop Entry]\nName=Foo\nType=Application\n")

		dirs := []string{filepath.Join(dir, "does-not-exist"), dir}
		entries, err := collectors.NewDesktopEntryCollector("linux", dirs, nil).Collect(context.Background())
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Identifier != "foo.desktop" {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("not applicable on windows", func(t *testing.T) {
		dir := t.TempDir()
		writeDesktopFile(t, dir, "foo.desktop", "[Desktop Entry]\nName=Foo\nType=Application\n")

		entries, err := collectors.NewDesktopEntryCollector("windows", []string{dir}, nil).Collect(context.Background())
		if err != nil || entries != nil {
			t.Errorf("Collect() = %v, %v; want nil, nil", entries, err)
		}
	})
}

func TestReadDesktopEntrySection(t *testing.T) {
	kv, err := collectors.ReadDesktopEntrySection(strings.NewReader(`[Other]
Name=Wrong
[Desktop Entry]
Name = First
Name=Second
Comment[fr]=Bonjour
=novalue
Icon=app
`))
	if err != nil {
		t.Fatalf("ReadDesktopEntrySection() error = %v", err)
	}
	if kv["Name"] != "First" {
		t.Errorf("Name = %q, want First", kv["Name"])
	}
	if kv["Icon"] != "app" {
		t.Errorf("Icon = %q, want app", kv["Icon"])
	}
	if _, ok := kv["Comment[fr]"]; ok {
		t.Error("localized key should be ignored")
	}
	if len(kv) != 2 {
		t.Errorf("got %d keys, want 2: %v", len(kv), kv)
	}
}

func TestDesktopSearchDirs(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	t.Run("uses XDG_DATA_DIRS", func(t *testing.T) {
		dirs := collectors.DesktopSearchDirs(env(map[string]string{
			"XDG_DATA_DIRS": "/opt/share::/usr/share",
			"HOME":          "/home/alice",
		}), []string{"/extra"})

		if dirs[0] != "/opt/share/applications" || dirs[1] != "/usr/share/applications" {
			t.Errorf("leading dirs = %v", dirs[:2])
		}
		if dirs[len(dirs)-1] != "/extra" {
			t.Errorf("last dir = %q, want /extra", dirs[len(dirs)-1])
		}
		if !contains(dirs, "/home/alice/.local/share/applications") {
			t.Errorf("user data dir missing from %v", dirs)
		}
		if contains(dirs, "/usr/local/share/applications") {
			t.Errorf("fallback dir used despite XDG_DATA_DIRS: %v", dirs)
		}
	})

	t.Run("falls back without XDG_DATA_DIRS", func(t *testing.T) {
		dirs := collectors.DesktopSearchDirs(env(nil), nil)

		if dirs[0] != "/usr/share/applications" || dirs[1] != "/usr/local/share/applications" {
			t.Errorf("leading dirs = %v", dirs[:2])
		}
		if !contains(dirs, "/var/lib/snapd/desktop/applications") {
			t.Errorf("snap export dir missing from %v", dirs)
		}
		for _, d := range dirs {
			if strings.HasPrefix(d, ".local") {
				t.Errorf("relative home dir %q without HOME", d)
			}
		}
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
