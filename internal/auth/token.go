package auth

import (
	"context"
	"strings"
	"time"

	"noterang/internal/browser"
)

// firebaseTokenScript walks the page's client-side stores for an access
// token: localStorage first, then the well-known auth IndexedDB, then every
// IndexedDB database. Resolves to "" when nothing is found.
const firebaseTokenScript = `(async () => {
	const fromValue = (v) => {
		try {
			if (typeof v === 'string') v = JSON.parse(v);
			return (v && v.stsTokenManager && v.stsTokenManager.accessToken) || null;
		} catch (e) {
			return null;
		}
	};
	for (let i = 0; i < localStorage.length; i++) {
		const key = localStorage.key(i);
		if (!key || !key.startsWith('firebase:authUser:')) continue;
		const token = fromValue(localStorage.getItem(key));
		if (token) return token;
	}
	const fromDatabase = (name) => new Promise((resolve) => {
		let req;
		try { req = indexedDB.open(name); } catch (e) { return resolve(null); }
		req.onerror = () => resolve(null);
		req.onsuccess = () => {
			const db = req.result;
			const stores = Array.from(db.objectStoreNames);
			if (!stores.length) { db.close(); return resolve(null); }
			let pending = stores.length;
			let found = null;
			const finish = () => { if (--pending === 0) { db.close(); resolve(found); } };
			for (const store of stores) {
				try {
					const getAll = db.transaction(store, 'readonly').objectStore(store).getAll();
					getAll.onsuccess = () => {
						for (const row of getAll.result || []) {
							const token = fromValue(row && row.value !== undefined ? row.value : row);
							if (token && !found) found = token;
						}
						finish();
					};
					getAll.onerror = finish;
				} catch (e) {
					finish();
				}
			}
		};
	});
	let token = await fromDatabase('firebaseLocalStorageDb');
	if (token) return token;
	if (indexedDB.databases) {
		try {
			for (const info of await indexedDB.databases()) {
				if (!info || !info.name) continue;
				token = await fromDatabase(info.name);
				if (token) return token;
			}
		} catch (e) {}
	}
	return '';
})()`

// ExtractPublishToken opens the publisher's admin page in the session's
// browser, triggering OAuth when the landing page is the sign-in route, and
// pulls the short-lived bearer token from client storage. Returns "" when no
// token is reachable; callers then fall back to UI publishing.
func (s *Session) ExtractPublishToken(ctx context.Context, adminURL string) (string, error) {
	drv := browser.NewDriver(s.Browser(), s.cfg.ScreenshotDir(), s.cfg.SaveScreenshots, s.log)

	if err := drv.Navigate(ctx, adminURL); err != nil {
		return "", err
	}
	time.Sleep(2 * time.Second)

	loc, err := drv.URL(ctx)
	if err != nil {
		return "", err
	}
	if strings.Contains(loc, "/login") || strings.Contains(loc, "/signin") {
		s.log.Debug("admin page wants sign-in, triggering OAuth")
		if err := s.triggerAdminOAuth(ctx, drv, adminURL); err != nil {
			s.log.Warn("admin OAuth failed: %v", err)
			return "", nil
		}
	}

	var token string
	if err := drv.EvaluateAsync(ctx, firebaseTokenScript, &token); err != nil {
		return "", err
	}
	if token == "" {
		s.log.Debug("no access token in client storage")
	}
	return token, nil
}

func (s *Session) triggerAdminOAuth(ctx context.Context, drv *browser.Driver, adminURL string) error {
	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return err
	}
	for _, needle := range []string{"Google로 로그인", "Sign in with Google", "Google 로그인"} {
		if el, ok := browser.FindByText(elements, needle); ok {
			if _, err := drv.CoordClick(ctx, el.Rect, "admin_oauth"); err != nil {
				return err
			}
			break
		}
	}
	// The persistent profile already carries the Google session, so the
	// OAuth round trip settles without a challenge.
	err = drv.WaitFor(ctx, "admin_oauth_settle", 30*time.Second, 2*time.Second, func(ctx context.Context) (bool, error) {
		loc, err := drv.URL(ctx)
		if err != nil {
			return false, nil
		}
		return !strings.Contains(loc, "/login") && !strings.Contains(loc, accountsHost), nil
	})
	if err != nil {
		return err
	}
	return drv.Navigate(ctx, adminURL)
}
