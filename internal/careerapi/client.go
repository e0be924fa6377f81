package careerapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.careermate.app/v1"
	userAgent = "dkoval/careermate"
)

// Client talks to the CareerMate API over authenticated HTTPS. One client
// serves one authenticated user; the server keys the interview session off the
// bearer credential.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}
