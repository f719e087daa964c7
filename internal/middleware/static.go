package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// UserDocumentDir returns the directory holding userID's uploads under root.
// It reports false for IDs that are not a single path element.
func UserDocumentDir(root, userID string) (string, bool) {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return "", false
	}
	return filepath.Join(root, userID), true
}

// DocumentServer serves the authenticated user's uploaded documents from
// their directory under dir. Other users' files and directories are 404.
func DocumentServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		userDir, ok := UserDocumentDir(dir, userID)
		if !ok {
			http.NotFound(w, r)
			return
		}

		name := filepath.Base(filepath.Clean("/" + r.URL.Path))
		if name == "/" || name == "." || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}

		path := filepath.Join(userDir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFile(w, r, path)
	})
}
