package main

import (
	"net/http"
	"os"
	"runtime"

	"github.com/goccy/go-json"
)

func FolderExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ErrorLogger.Println(err)
	}
}

func OnError(r *http.Request, err string) {
	_, _, line, _ := runtime.Caller(1)
	ErrorLogger.Println("error on line: ", line, r.Method, r.URL.String(), err)
}
