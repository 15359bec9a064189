package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"noterang/internal/browser"
)

// otpOptionTexts identify the authenticator entry in the "try another way"
// method list.
var otpOptionTexts = []string{"Google OTP", "인증 앱", "Authenticator", "authenticator"}

// phoneOptionTexts mark methods that must never be clicked. TOTP is the only
// accepted second factor; phone and SMS challenges stall the automation.
var phoneOptionTexts = []string{"전화", "휴대전화", "phone", "Phone", "SMS", "문자", "메시지", "text message"}

var tryAnotherWayTexts = []string{"다른 방법 시도", "Try another way", "More ways to verify"}

// runLogin drives the identity-provider pages to a settled product session
// and captures the cookie jar.
func (s *Session) runLogin(ctx context.Context, drv *browser.Driver, timeout time.Duration) (*Artifact, []Cookie, error) {
	deadline := time.Now().Add(timeout)

	if err := drv.Navigate(ctx, ProductURL); err != nil {
		return nil, nil, fmt.Errorf("open product: %w", err)
	}
	time.Sleep(2 * time.Second)

	loc, err := drv.URL(ctx)
	if err != nil {
		return nil, nil, err
	}

	if strings.Contains(loc, accountsHost) {
		if err := s.fillIdentifier(ctx, drv); err != nil {
			drv.Screenshot(ctx, "login_identifier_failed")
			return nil, nil, err
		}
		if err := s.fillPassword(ctx, drv); err != nil {
			drv.Screenshot(ctx, "login_password_failed")
			return nil, nil, err
		}
		if err := s.passSecondFactor(ctx, drv); err != nil {
			drv.Screenshot(ctx, "login_2fa_failed")
			return nil, nil, err
		}
	}

	if err := s.waitForProductHost(ctx, drv, time.Until(deadline)); err != nil {
		drv.Screenshot(ctx, "login_settle_timeout")
		return nil, nil, err
	}

	cookies, err := captureCookies(ctx, drv)
	if err != nil {
		return nil, nil, fmt.Errorf("capture cookies: %w", err)
	}
	finalURL, _ := drv.URL(ctx)
	artifact, err := BuildArtifact(cookies, s.cfg.GoogleEmail, notebookIDFromURL(finalURL), time.Now())
	if err != nil {
		drv.Screenshot(ctx, "login_cookie_check_failed")
		return nil, nil, err
	}
	drv.Screenshot(ctx, "login_success")
	return artifact, cookies, nil
}

func (s *Session) fillIdentifier(ctx context.Context, drv *browser.Driver) error {
	s.log.Debug("login: filling identifier")
	return drv.Do(ctx, 30*time.Second,
		chromedp.WaitVisible(`input[type="email"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[type="email"]`, s.cfg.GoogleEmail, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(`#identifierNext`, chromedp.ByID),
		chromedp.Sleep(2*time.Second),
	)
}

func (s *Session) fillPassword(ctx context.Context, drv *browser.Driver) error {
	s.log.Debug("login: filling password")
	return drv.Do(ctx, 30*time.Second,
		chromedp.WaitVisible(`input[name="Passwd"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="Passwd"]`, s.cfg.GooglePassword, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(`#passwordNext`, chromedp.ByID),
		chromedp.Sleep(3*time.Second),
	)
}

// passSecondFactor reaches the TOTP input in up to three phases: the input
// may already be shown; otherwise "try another way" opens the method list,
// once or twice, and the authenticator entry is picked while every
// phone-flavored entry is skipped.
func (s *Session) passSecondFactor(ctx context.Context, drv *browser.Driver) error {
	visible, err := s.totpInputVisible(ctx, drv)
	if err != nil {
		return err
	}
	if !visible {
		for phase := 0; phase < 2 && !visible; phase++ {
			if done, _ := s.onProductHost(ctx, drv); done {
				return nil
			}
			s.log.Debug("login: 2fa phase %d, looking for another method", phase+1)
			if err := s.clickTryAnotherWay(ctx, drv); err != nil {
				s.log.Debug("login: no method picker: %v", err)
			}
			time.Sleep(1500 * time.Millisecond)
			if err := s.pickAuthenticatorOption(ctx, drv); err != nil {
				s.log.Debug("login: method pick failed: %v", err)
			}
			time.Sleep(1500 * time.Millisecond)
			visible, err = s.totpInputVisible(ctx, drv)
			if err != nil {
				return err
			}
		}
	}
	if !visible {
		if done, _ := s.onProductHost(ctx, drv); done {
			return nil
		}
		return fmt.Errorf("no TOTP input reachable; account may require a phone or hardware key factor")
	}
	return s.enterTOTP(ctx, drv)
}

func (s *Session) totpInputVisible(ctx context.Context, drv *browser.Driver) (bool, error) {
	var visible bool
	err := drv.Evaluate(ctx, `(() => {
		const el = document.querySelector('input[name="totpPin"], #totpPin');
		if (!el) return false;
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	})()`, &visible)
	return visible, err
}

func (s *Session) onProductHost(ctx context.Context, drv *browser.Driver) (bool, error) {
	loc, err := drv.URL(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(loc, "notebooklm.google.com"), nil
}

func (s *Session) clickTryAnotherWay(ctx context.Context, drv *browser.Driver) error {
	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return err
	}
	for _, needle := range tryAnotherWayTexts {
		if el, ok := browser.FindByText(elements, needle); ok {
			_, err := drv.CoordClick(ctx, el.Rect, "try_another_way")
			return err
		}
	}
	return fmt.Errorf("no try-another-way control on page")
}

func (s *Session) pickAuthenticatorOption(ctx context.Context, drv *browser.Driver) error {
	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return err
	}
	for _, el := range elements {
		if !el.Visible() || !el.MatchesAny(otpOptionTexts) {
			continue
		}
		if el.MatchesAny(phoneOptionTexts) {
			continue
		}
		s.log.Debug("login: picking 2fa method %q", el.Text)
		_, err := drv.CoordClick(ctx, el.Rect, "otp_method")
		return err
	}
	return fmt.Errorf("no authenticator option among challenge methods")
}

func (s *Session) enterTOTP(ctx context.Context, drv *browser.Driver) error {
	code, err := TOTPCode(s.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("compute TOTP: %w", err)
	}
	s.log.Debug("login: submitting TOTP code")
	err = drv.Do(ctx, 30*time.Second,
		chromedp.WaitVisible(`input[name="totpPin"], #totpPin`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="totpPin"], #totpPin`, code, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		return err
	}
	if err := drv.Do(ctx, 10*time.Second, chromedp.Click(`#totpNext`, chromedp.ByID)); err != nil {
		// Some challenge layouts have no Next button.
		return drv.PressKey(ctx, "\r")
	}
	return nil
}

func (s *Session) waitForProductHost(ctx context.Context, drv *browser.Driver, timeout time.Duration) error {
	return drv.WaitFor(ctx, "login_settle", timeout, 2*time.Second, func(ctx context.Context) (bool, error) {
		loc, err := drv.URL(ctx)
		if err != nil {
			return false, nil
		}
		return strings.Contains(loc, "notebooklm.google.com") && !strings.Contains(loc, accountsHost), nil
	})
}

func captureCookies(ctx context.Context, drv *browser.Driver) ([]Cookie, error) {
	var raw []*network.Cookie
	err := drv.Do(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cs, err := storage.GetCookies().Do(ctx)
		raw = cs
		return err
	}))
	if err != nil {
		return nil, err
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return cookies, nil
}

// notebookIDFromURL extracts the current notebook path segment, when the
// product landed inside a notebook.
func notebookIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "notebook" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
