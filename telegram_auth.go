package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

var (
	ErrNoInitData = errors.New("no_init_data")
	ErrBadHash    = errors.New("bad_hash")
	ErrNoUser     = errors.New("no_user")
)

// VerifyInitData checks the Telegram Web App signature over a raw initData
// query string and returns the parsed payload. The check key is
// HMAC-SHA256("WebAppData", botToken), never the bot token itself.
func VerifyInitData(raw string, botToken string) (initdata.InitData, error) {
	if raw == "" {
		return initdata.InitData{}, ErrNoInitData
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return initdata.InitData{}, ErrBadHash
	}

	hash := values.Get("hash")
	if hash == "" {
		return initdata.InitData{}, ErrBadHash
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		for _, val := range vals {
			pairs = append(pairs, key+"="+val)
		}
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	check := hmac.New(sha256.New, secret.Sum(nil))
	check.Write([]byte(strings.Join(pairs, "\n")))

	if hex.EncodeToString(check.Sum(nil)) != hash {
		return initdata.InitData{}, ErrBadHash
	}

	if values.Get("user") == "" {
		return initdata.InitData{}, ErrNoUser
	}

	data, err := initdata.Parse(raw)
	if err != nil {
		return initdata.InitData{}, ErrNoUser
	}
	if data.User.ID == 0 {
		return initdata.InitData{}, ErrNoUser
	}

	return data, nil
}
