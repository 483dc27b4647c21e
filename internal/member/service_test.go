package member_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"agendahub/internal/member"

	dErrors "agendahub/pkg/domain-errors"
)

type staticIssuer struct{}

func (staticIssuer) GenerateToken(memberID uuid.UUID, role string) (string, error) {
	return fmt.Sprintf("token:%s:%s", memberID, role), nil
}

type MemberServiceSuite struct {
	suite.Suite

	service *member.Service
}

func TestMemberServiceSuite(t *testing.T) {
	suite.Run(t, new(MemberServiceSuite))
}

func (s *MemberServiceSuite) SetupTest() {
	s.service = member.NewService(member.NewMemory(), staticIssuer{}, slog.Default())
}

func (s *MemberServiceSuite) register(email, password string) *member.Member {
	s.T().Helper()
	m := &member.Member{
		ID:       uuid.New(),
		FullName: "Budi Santoso",
		Email:    email,
		Role:     "member",
		Semester: 4,
		Faculty:  "engineering",
	}
	s.Require().NoError(s.service.Register(context.Background(), m, password))
	return m
}

func (s *MemberServiceSuite) TestLogin() {
	ctx := context.Background()

	s.Run("valid credentials mint a token", func() {
		m := s.register("budi@example.com", "s3cret-pass")

		token, got, err := s.service.Login(ctx, "budi@example.com", "s3cret-pass")
		s.Require().NoError(err)
		s.Equal(fmt.Sprintf("token:%s:member", m.ID), token)
		s.Equal(m.ID, got.ID)
	})

	s.Run("email lookup is case insensitive", func() {
		s.register("siti@example.com", "s3cret-pass")

		_, got, err := s.service.Login(ctx, "Siti@Example.COM", "s3cret-pass")
		s.Require().NoError(err)
		s.Equal("siti@example.com", got.Email)
	})

	s.Run("wrong password is rejected", func() {
		s.register("andi@example.com", "right-pass")

		_, _, err := s.service.Login(ctx, "andi@example.com", "wrong-pass")
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("unknown email reads the same as a wrong password", func() {
		s.register("dewi@example.com", "right-pass")

		_, _, wrongPass := s.service.Login(ctx, "dewi@example.com", "wrong-pass")
		_, _, unknown := s.service.Login(ctx, "nobody@example.com", "right-pass")
		s.Require().Error(wrongPass)
		s.Require().Error(unknown)
		s.Equal(wrongPass.Error(), unknown.Error())
	})
}

func (s *MemberServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("password is stored hashed", func() {
		m := s.register("rara@example.com", "plain-pass")
		s.NotEqual("plain-pass", m.PasswordHash)
		s.NotEmpty(m.PasswordHash)
	})

	s.Run("duplicate email conflicts", func() {
		s.register("joko@example.com", "pass-one")

		err := s.service.Register(ctx, &member.Member{
			ID:    uuid.New(),
			Email: "Joko@example.com",
			Role:  "member",
		}, "pass-two")
		s.Require().Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})
}

func (s *MemberServiceSuite) TestResolve() {
	ctx := context.Background()
	m := s.register("lina@example.com", "s3cret-pass")

	s.Run("by id", func() {
		got, err := s.service.Resolve(ctx, m.ID)
		s.Require().NoError(err)
		s.Equal("lina@example.com", got.Email)
	})

	s.Run("unknown id", func() {
		_, err := s.service.Resolve(ctx, uuid.New())
		s.Require().Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})

	s.Run("by email", func() {
		got, err := s.service.ResolveEmail(ctx, "lina@example.com")
		s.Require().NoError(err)
		s.Equal(m.ID, got.ID)
	})
}

func (s *MemberServiceSuite) TestAttributes() {
	m := s.register("tono@example.com", "s3cret-pass")

	attrs := m.Attributes()
	s.Equal("4", attrs["semester"])
	s.Equal("engineering", attrs["faculty"])
	s.Equal("member", attrs["role"])
}
