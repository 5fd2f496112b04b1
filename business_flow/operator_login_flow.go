package businessflow

import (
	"context"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/services"
	"github.com/amirphl/orochi-outreach/config"
	"golang.org/x/crypto/bcrypt"
)

// OperatorAuthFlow authenticates admin API operators
type OperatorAuthFlow interface {
	Login(ctx context.Context, req *dto.OperatorLoginRequest) (*dto.OperatorLoginResponse, error)
}

// OperatorAuthFlowImpl checks credentials against the configured operators
type OperatorAuthFlowImpl struct {
	operators    map[string]string
	dummyHash    []byte
	tokenService services.TokenService
}

func NewOperatorAuthFlow(operators []config.OperatorConfig, tokenService services.TokenService) OperatorAuthFlow {
	byName := make(map[string]string, len(operators))
	for _, op := range operators {
		byName[op.Username] = op.PasswordHash
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("unknown-operator"), bcrypt.DefaultCost)
	return &OperatorAuthFlowImpl{operators: byName, dummyHash: dummy, tokenService: tokenService}
}

func (f *OperatorAuthFlowImpl) Login(ctx context.Context, req *dto.OperatorLoginRequest) (*dto.OperatorLoginResponse, error) {
	if req == nil || req.Username == "" || req.Password == "" {
		return nil, NewBusinessError("OPERATOR_LOGIN_VALIDATION_FAILED", "Operator login validation failed", ErrIncorrectPassword)
	}

	hash, ok := f.operators[req.Username]
	if !ok {
		// Unknown names cost one bcrypt compare as well
		_ = bcrypt.CompareHashAndPassword(f.dummyHash, []byte(req.Password))
		return nil, NewBusinessError("OPERATOR_NOT_FOUND", "Operator not found", ErrOperatorNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError("OPERATOR_INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	token, expiresAt, err := f.tokenService.GenerateOperatorToken(req.Username)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}
	return &dto.OperatorLoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}
