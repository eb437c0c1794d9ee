package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	apihttp "github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/http"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/repo"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/services"
)

func sampleReport() domain.SprintData {
	t := domain.Ticket{TicketKey: "A-1", DisplayLabel: "A-1", Summary: "Build", StoryPoints: 5, HoursLogged: 3}
	t.Recompute(1)
	return domain.SprintData{
		SprintID:           1,
		SprintName:         "Sprint 1",
		SprintStart:        "2024-01-01",
		SprintEnd:          "2024-01-14",
		HoursPerStoryPoint: 1,
		Users:              []string{"Alice"},
		UserData:           map[string][]domain.Ticket{"Alice": {t}},
		UserSummaries:      map[string]domain.UserSummary{"Alice": {UserID: "user-1", OwnStoryPoints: 5, TotalHours: 3, TotalHoursFormatted: "3h 0m"}},
		Headers:            domain.DefaultHeaders(),
		Totals:             domain.Totals{AllStoryPoints: 5, AllHours: 3, AllHoursFormatted: "3h 0m"},
	}
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

var _ = Describe("Handlers", func() {
	var (
		cfg    config.Config
		svc    *mockService
		runner *mockRunner
		router *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		cfg = config.Config{AppEnv: "test"}
		svc = &mockService{}
		runner = &mockRunner{triggers: make(chan string, 1)}
	})

	JustBeforeEach(func() {
		h := apihttp.NewHandlers(cfg, zerolog.Nop(), svc, runner)
		router = apihttp.NewRouter(cfg, zerolog.Nop(), h)
	})

	It("reports health", func() {
		w := get(router, "/healthz")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"ok":true`))
	})

	Describe("POST /api/jira-proxy", func() {
		var upstream *httptest.Server

		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				if !ok || user != "me@acme.io" || pass != "tok" {
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte("bad credentials"))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"values":[]}`))
			}))
			DeferCleanup(upstream.Close)
			cfg.RelayAllowedHosts = []string{"127.0.0.1"}
		})

		It("rejects requests with missing fields", func() {
			w := postJSON(router, "/api/jira-proxy", map[string]string{"url": upstream.URL})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("missing required parameters"))
		})

		It("passes the upstream body through", func() {
			w := postJSON(router, "/api/jira-proxy", jira.RelayRequest{URL: upstream.URL + "/rest/agile/1.0/board/1/sprint", Email: "me@acme.io", APIToken: "tok"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal(`{"values":[]}`))
		})

		It("surfaces the upstream status and body", func() {
			w := postJSON(router, "/api/jira-proxy", jira.RelayRequest{URL: upstream.URL, Email: "me@acme.io", APIToken: "wrong"})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["error"]).To(Equal("Jira API error: 401"))
			Expect(resp["details"]).To(Equal("bad credentials"))
		})

		Context("without a configured allow list", func() {
			BeforeEach(func() {
				cfg.RelayAllowedHosts = nil
				cfg.JiraBaseURL = "https://acme.atlassian.net"
			})

			DescribeTable("refuses hosts outside the jira site",
				func(target string) {
					w := postJSON(router, "/api/jira-proxy", jira.RelayRequest{URL: target, Email: "me@acme.io", APIToken: "tok"})
					Expect(w.Code).To(Equal(http.StatusForbidden))
				},
				Entry("local test server", "http://127.0.0.1:1/rest"),
				Entry("cloud metadata", "http://169.254.169.254/latest/meta-data/"),
				Entry("loopback redis", "http://127.0.0.1:6379/"),
				Entry("internal name", "http://internal-db.local/"),
				Entry("foreign site", "https://evil.example.com/rest"),
			)
		})

		Context("with an allow list", func() {
			BeforeEach(func() { cfg.RelayAllowedHosts = []string{"*.atlassian.net"} })

			It("refuses other hosts", func() {
				w := postJSON(router, "/api/jira-proxy", jira.RelayRequest{URL: upstream.URL, Email: "me@acme.io", APIToken: "tok"})
				Expect(w.Code).To(Equal(http.StatusForbidden))
			})
		})
	})

	Describe("POST /api/sprints", func() {
		It("returns labelled sprints and the default selection", func() {
			svc.listFn = func(_ context.Context, conn jira.Connection, boardID int64) ([]domain.Sprint, error) {
				Expect(boardID).To(Equal(int64(7)))
				Expect(conn.Email).To(Equal("me@acme.io"))
				return []domain.Sprint{
					{ID: 2, Name: "Next", State: "future"},
					{ID: 1, Name: "Now", State: "active"},
				}, nil
			}
			w := postJSON(router, "/api/sprints", map[string]any{"boardId": 7, "connection": map[string]string{"email": "me@acme.io"}})
			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Sprints []struct {
					ID    int64  `json:"id"`
					Label string `json:"label"`
				} `json:"sprints"`
				Selected int64 `json:"selected"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Sprints).To(HaveLen(2))
			Expect(resp.Sprints[0].Label).To(Equal("Next (Future)"))
			Expect(resp.Selected).To(Equal(int64(1)))
		})

		It("maps missing credentials to 400", func() {
			svc.listFn = func(context.Context, jira.Connection, int64) ([]domain.Sprint, error) {
				return nil, domain.ErrMissingCredentials
			}
			Expect(postJSON(router, "/api/sprints", map[string]any{}).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/report", func() {
		It("returns the report and run stats", func() {
			svc.buildFn = func(_ context.Context, req services.ReportRequest) (domain.SprintData, services.RunStats, error) {
				Expect(*req.SprintID).To(Equal(int64(1)))
				return sampleReport(), services.RunStats{Issues: 1, Tickets: 1}, nil
			}
			w := postJSON(router, "/api/report", map[string]any{"sprintId": 1})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"sprintName":"Sprint 1"`))
			Expect(w.Body.String()).To(ContainSubstring(`"tickets":1`))
		})

		DescribeTable("error mapping",
			func(err error, status int) {
				svc.buildFn = func(context.Context, services.ReportRequest) (domain.SprintData, services.RunStats, error) {
					return domain.SprintData{}, services.RunStats{}, err
				}
				Expect(postJSON(router, "/api/report", map[string]any{}).Code).To(Equal(status))
			},
			Entry("missing board", domain.ErrMissingBoard, http.StatusBadRequest),
			Entry("no sprint", domain.ErrNoSprint, http.StatusNotFound),
			Entry("tracker 401", &jira.APIError{Status: 401, Body: "nope"}, http.StatusUnauthorized),
			Entry("tracker 500", &jira.APIError{Status: 500, Body: "oops"}, http.StatusBadGateway),
			Entry("other", context.DeadlineExceeded, http.StatusGatewayTimeout),
		)
	})

	Describe("POST /api/report/edit", func() {
		It("applies the edit and recomputes totals", func() {
			w := postJSON(router, "/api/report/edit", map[string]any{
				"report": sampleReport(),
				"edit":   map[string]any{"kind": "ticket", "user": "Alice", "index": 0, "field": "hoursLogged", "value": 4},
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			var out domain.SprintData
			Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
			Expect(out.UserData["Alice"][0].HoursLogged).To(Equal(4.0))
			Expect(out.Totals.AllHours).To(Equal(4.0))
		})

		It("rejects unknown users", func() {
			w := postJSON(router, "/api/report/edit", map[string]any{
				"report": sampleReport(),
				"edit":   map[string]any{"kind": "ticket", "user": "Zed", "index": 0, "field": "summary", "value": "x"},
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("exports the report as a CSV attachment", func() {
		w := postJSON(router, "/api/report/csv", sampleReport())
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/csv"))
		Expect(w.Header().Get("Content-Disposition")).To(MatchRegexp(`attachment; filename="Sprint_Report_\d{4}-\d{2}-\d{2}\.csv"`))
		Expect(strings.Split(w.Body.String(), "\n")[0]).To(Equal("Sprint Report"))
		Expect(w.Body.String()).To(ContainSubstring("Total for Alice,,5,3h 0m,,"))
	})

	Describe("latest report and runs", func() {
		It("returns 404 before any scheduled run", func() {
			Expect(get(router, "/api/report/latest").Code).To(Equal(http.StatusNotFound))
			Expect(get(router, "/admin/last-run").Code).To(Equal(http.StatusNotFound))
		})

		It("returns the latest report and run", func() {
			svc.latestFn = func(context.Context) (domain.SprintData, error) { return sampleReport(), nil }
			svc.lastRunFn = func(context.Context) (*repo.ReportRun, error) {
				return &repo.ReportRun{ID: 3, Trigger: "cron", Success: true}, nil
			}
			Expect(get(router, "/api/report/latest").Code).To(Equal(http.StatusOK))
			w := get(router, "/admin/last-run")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"trigger":"cron"`))
		})

		It("queues an admin run", func() {
			req := httptest.NewRequest(http.MethodPost, "/admin/run", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Eventually(runner.triggers).Should(Receive(Equal("admin")))
		})
	})
})
