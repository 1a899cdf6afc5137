package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docqa/internal/domain"
	"docqa/internal/tui"
)

type queryList []string

func (q *queryList) String() string     { return fmt.Sprint(*q) }
func (q *queryList) Set(v string) error { *q = append(*q, v); return nil }

func main() {
	_ = godotenv.Load()

	var serverURL string
	var queries queryList
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the docqa server")
	flag.Var(&queries, "query", "Query to answer (repeatable)")
	flag.Parse()
	files := flag.Args()
	if len(files) == 0 || len(queries) == 0 {
		fmt.Println("Usage: docqa-watch [--server=http://localhost:8080] --query \"...\" [--query ...] file1.pdf [file2.pdf ...]")
		os.Exit(1)
	}

	body, contentType, err := buildRequest(files, queries)
	if err != nil {
		log.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.Post(serverURL+"/api/process", contentType, body)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		log.Fatalf("server rejected request: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	events := make(chan domain.ProgressEvent)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		// completion events carry full results; allow large lines
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var ev domain.ProgressEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			events <- ev
		}
	}()

	m, err := tea.NewProgram(tui.New(events)).Run()
	if err != nil {
		log.Fatal(err)
	}
	if final, ok := m.(tui.Model); ok && final.Failed() {
		os.Exit(1)
	}
}

func buildRequest(files []string, queries []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, q := range queries {
		if err := mw.WriteField("queries", q); err != nil {
			return nil, "", err
		}
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename="%s"`, filepath.Base(path)))
		hdr.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(hdr)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
