package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const settingsJSON = `{"data":{
	"connection_id":"c-1","db_type":"POSTGRESQL","storage_target":"S3","s3_bucket":"backups","s3_region":"eu-west-1",
	"backup_upload_role_arn":"arn:aws:iam::123456789012:role/Up","backup_restore_role_arn":null,
	"backup_delete_role_arn":null,"local_storage_path":null,"retention_enabled":false,
	"retention_mode":null,"retention_value":null,"default_backup_type":"FULL",
	"scheduling_enabled":true,"cron_expression":"0 2 * * *","timeout_minutes":null,
	"created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-02T00:00:00Z"}}`

type backupAPI struct {
	*httptest.Server
	mu      sync.Mutex
	patches []map[string]any
	deletes int
}

func newBackupAPI() *backupAPI {
	b := &backupAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /connections/summary", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"c-1","db_name":"orders_db","db_type":"POSTGRESQL","env_tag":"production","status":"VERIFIED",
			 "lastBackupAt":"2026-01-02T03:04:05Z","backupStatus":"COMPLETED","storageUsedGB":1.5},
			{"id":"c-2","db_name":"sessions","db_type":"MONGODB","env_tag":"staging","status":"ERROR",
			 "lastBackupAt":null,"backupStatus":null,"storageUsedGB":0}]}`)
	})
	mux.HandleFunc("DELETE /connections/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deletes++
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /backup-settings/c-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, settingsJSON)
	})
	mux.HandleFunc("PATCH /backup-settings/c-1", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		b.mu.Lock()
		b.patches = append(b.patches, body)
		b.mu.Unlock()
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("GET /backups/c-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"b-1","backup_name":"nightly","backup_type":"FULL","backup_size_bytes":2048,
			"storage_target":"S3","storage_path":"c-1/b-1.sql.gz","status":"COMPLETED",
			"created_at":"2026-01-02T03:04:05Z","started_at":null,"error":null}]}`)
	})
	b.Server = httptest.NewServer(mux)
	return b
}

func (b *backupAPI) recordedPatches() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.patches...)
}

func writeTestConfig(dir, baseURL string) string {
	path := filepath.Join(dir, "phylax.yaml")
	content := fmt.Sprintf(`
app:
  log_level: error
api:
  base_url: %s
drafts:
  path: %s
downloads:
  path: %s
`, baseURL, filepath.Join(dir, "drafts.db"), filepath.Join(dir, "downloads"))
	So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)
	return path
}

func execute(configPath string, args ...string) (string, error) {
	cmd := NewRootCommand(VersionInfo{Version: "test", Commit: "none"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	Convey("Given phylaxctl configured against a backup server", t, func() {
		api := newBackupAPI()
		defer api.Close()
		configPath := writeTestConfig(t.TempDir(), api.URL)

		Convey("When listing connections", func() {
			out, err := execute(configPath, "connections", "list")

			Convey("It should print one row per connection", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "orders_db")
				So(out, ShouldContainSubstring, "sessions")
				So(out, ShouldContainSubstring, "1.5 GB")
			})
		})

		Convey("When searching connections by engine", func() {
			out, err := execute(configPath, "connections", "list", "--search", "MONGO")

			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "sessions")
			So(out, ShouldNotContainSubstring, "orders_db")
		})

		Convey("When showing fleet statistics", func() {
			out, err := execute(configPath, "connections", "stats")

			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Connections:")
			So(out, ShouldContainSubstring, "Active:")
		})

		Convey("When deleting without confirmation", func() {
			_, err := execute(configPath, "connections", "delete", "c-1")

			Convey("It should refuse and send nothing", func() {
				So(err, ShouldNotBeNil)
				So(api.deletes, ShouldEqual, 0)
			})
		})

		Convey("When showing backup settings", func() {
			out, err := execute(configPath, "settings", "show", "c-1")

			Convey("It should print every card with a schedule preview", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "backups")
				So(out, ShouldContainSubstring, "0 2 * * *")
				So(out, ShouldContainSubstring, "Next run 1:")
				So(out, ShouldContainSubstring, "requires S3 storage with a delete role")
				So(out, ShouldContainSubstring, "60 minutes")
			})
		})

		Convey("When changing the backup timeout", func() {
			out, err := execute(configPath, "settings", "limits", "c-1", "--timeout", "90")

			Convey("It should patch only the timeout", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Backup timeout updated successfully")
				patches := api.recordedPatches()
				So(patches, ShouldHaveLength, 1)
				So(patches[0], ShouldResemble, map[string]any{"timeout_minutes": float64(90)})
			})
		})

		Convey("When the timeout is out of range", func() {
			out, err := execute(configPath, "settings", "limits", "c-1", "--timeout", "2000")

			Convey("It should report the violation without a request", func() {
				So(err, ShouldNotBeNil)
				So(out, ShouldContainSubstring, "1440")
				So(api.recordedPatches(), ShouldBeEmpty)
			})
		})

		Convey("When editing retention without a delete role", func() {
			_, err := execute(configPath, "settings", "retention", "c-1", "--enable", "--value", "5")

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "cannot be changed")
			So(api.recordedPatches(), ShouldBeEmpty)
		})

		Convey("When listing backups", func() {
			out, err := execute(configPath, "backups", "list", "c-1")

			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "nightly")
			So(out, ShouldContainSubstring, "2.0 kB")
		})

		Convey("When pruning downloads with nothing to prune", func() {
			out, err := execute(configPath, "backups", "prune")

			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Removed 0 download(s)")
		})
	})
}
