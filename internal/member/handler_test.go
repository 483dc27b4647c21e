package member_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"agendahub/internal/jwttoken"
	"agendahub/internal/member"
	"agendahub/pkg/testutil"
)

type MemberHandlerSuite struct {
	suite.Suite

	router chi.Router
}

func TestMemberHandlerSuite(t *testing.T) {
	suite.Run(t, new(MemberHandlerSuite))
}

func (s *MemberHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwttoken.New("test-signing-key", "agendahub-test", time.Hour)
	svc := member.NewService(member.NewMemory(), tokens, logger)

	s.router = chi.NewRouter()
	member.NewHandler(svc).Register(s.router)
}

func (s *MemberHandlerSuite) register(email string) {
	s.T().Helper()
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
		"full_name": "Budi Santoso",
		"email":     email,
		"password":  "s3cret-pass",
		"semester":  4,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

func (s *MemberHandlerSuite) TestRegister() {
	s.Run("creates an account", func() {
		s.register("budi@example.com")
	})

	s.Run("duplicate email conflicts", func() {
		s.register("siti@example.com")

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"full_name": "Siti Lestari",
			"email":     "siti@example.com",
			"password":  "another-pass",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	})

	s.Run("invalid email is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"full_name": "Andi",
			"email":     "not-an-email",
			"password":  "s3cret-pass",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("short password is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"full_name": "Andi",
			"email":     "andi@example.com",
			"password":  "short",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *MemberHandlerSuite) TestLogin() {
	s.Run("registered account can log in", func() {
		s.register("dewi@example.com")

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", map[string]any{
			"email":    "dewi@example.com",
			"password": "s3cret-pass",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("wrong password is unauthorized", func() {
		s.register("joko@example.com")

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", map[string]any{
			"email":    "joko@example.com",
			"password": "wrong-pass",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}
