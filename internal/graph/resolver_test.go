package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

func TestResolveSite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/contoso.sharepoint.com:/sites/Engineering" {
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id":"contoso.sharepoint.com,guid-a,guid-b","displayName":"Engineering"}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	site, err := client.ResolveSite(context.Background(), "contoso.sharepoint.com", "/sites/Engineering")
	if err != nil {
		t.Fatalf("ResolveSite() error = %v", err)
	}
	if site.ID != "contoso.sharepoint.com,guid-a,guid-b" {
		t.Errorf("site.ID = %q", site.ID)
	}
}

func TestResolveSite_RootSite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/contoso.sharepoint.com" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"id":"root-site-id"}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	site, err := client.ResolveSite(context.Background(), "contoso.sharepoint.com", "")
	if err != nil {
		t.Fatalf("ResolveSite() error = %v", err)
	}
	if site.ID != "root-site-id" {
		t.Errorf("site.ID = %q", site.ID)
	}
}

func TestResolveSite_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"itemNotFound","message":"Requested site could not be found"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	_, err := client.ResolveSite(context.Background(), "contoso.sharepoint.com", "/sites/Nope")
	if err == nil {
		t.Fatal("ResolveSite() expected error")
	}
	if utils.ErrorCode(err) != utils.ErrCodeSiteNotFound {
		t.Errorf("error code = %s, want %s", utils.ErrorCode(err), utils.ErrCodeSiteNotFound)
	}
}

func TestResolveDrive(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sites/site-1/drives", func(w http.ResponseWriter, r *http.Request) {
		// Paging links arrive absolute, so the client must follow them as-is.
		w.Write([]byte(`{
			"value": [{"id":"d-1","name":"Style Library"}],
			"@odata.nextLink": "` + server.URL + `/drives-page-2"
		}`))
	})
	mux.HandleFunc("/drives-page-2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": [{"id":"d-2","name":"Documents","driveType":"documentLibrary"}]}`))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := testClient(server.URL, 0)

	// Case-insensitive match on the second page.
	drive, err := client.ResolveDrive(context.Background(), "site-1", "documents")
	if err != nil {
		t.Fatalf("ResolveDrive() error = %v", err)
	}
	if drive.ID != "d-2" {
		t.Errorf("drive.ID = %q, want d-2", drive.ID)
	}
}

func TestResolveDrive_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": [{"id":"d-1","name":"Documents"},{"id":"d-2","name":"Site Assets"}]}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	_, err := client.ResolveDrive(context.Background(), "site-1", "Archive")
	if err == nil {
		t.Fatal("ResolveDrive() expected error")
	}
	if utils.ErrorCode(err) != utils.ErrCodeDriveNotFound {
		t.Errorf("error code = %s, want %s", utils.ErrorCode(err), utils.ErrCodeDriveNotFound)
	}
	for _, name := range []string{"Documents", "Site Assets"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should list available drive %q", err.Error(), name)
		}
	}
}
