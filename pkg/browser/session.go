package browser

import (
	"context"

	"github.com/odvcencio/reqguard/pkg/locator"
	"github.com/odvcencio/reqguard/pkg/request"
	"github.com/odvcencio/reqguard/pkg/script"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_driver.go github.com/odvcencio/reqguard/pkg/browser Driver
//go:generate mockgen -package=mocks -destination=mocks/mock_classifier.go github.com/odvcencio/reqguard/pkg/request Classifier

// Driver is the only capability guards need from a browser: perform a click and
// evaluate a script. Errors are returned unchanged to the guard's caller.
type Driver interface {
	Click(ctx context.Context, loc locator.Locator) error
	Evaluate(ctx context.Context, js script.JavaScript) (string, error)
}

// Session is a driver bound to one browser page, with the classifier that
// observes that page's network activity.
type Session interface {
	Driver
	ID() string
	Navigate(ctx context.Context, url string) error
	Classifier() request.Classifier
	Close() error
}

// Runtime manages browser sessions.
type Runtime interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}
