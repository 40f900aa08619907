package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type GiftAPI struct {
	store    *GiftStore
	bot      *tgbotapi.BotAPI
	botToken string

	rankMu   sync.RWMutex
	topFifty Stats
}

func NewGiftAPI(store *GiftStore, bot *tgbotapi.BotAPI, botToken string) *GiftAPI {
	return &GiftAPI{store: store, bot: bot, botToken: botToken}
}

func InitGiftRoutes(router *mux.Router, api *GiftAPI) {
	initRateLimitCleanUp()

	router.Use(AccessControlMiddleware)
	router.Use(limitConcurrentRequests)
	router.Use(rateLimitMiddleWare)
	router.Use(logging)

	go api.cacheUserRankings(&api.topFifty)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Gift Miner backend is running"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/auth/telegram", api.authTelegram).Methods(http.MethodPost)
	router.HandleFunc("/gifts/sync", api.syncGifts).Methods(http.MethodPost)
	router.HandleFunc("/gifts", api.listGifts).Methods(http.MethodGet)
	router.HandleFunc("/gifts/claim", api.claimGift).Methods(http.MethodPost)
	router.HandleFunc("/balance", api.balance).Methods(http.MethodGet)
	router.HandleFunc("/transactions", api.transactions).Methods(http.MethodGet)
	router.HandleFunc("/leaderboard", api.leaderboard).Methods(http.MethodGet)
}

func (api *GiftAPI) authTelegram(w http.ResponseWriter, r *http.Request) {
	var body AuthRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}
	defer r.Body.Close()

	data, err := VerifyInitData(body.InitDataRaw, api.botToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}

	user, created, err := api.store.AuthUser(data.User)
	if err != nil {
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	if body.Ref != "" {
		if err := api.store.RecordReferral(body.Ref, user.Id); err != nil {
			OnError(r, err.Error())
			http.Error(w, "Something went wrong!", http.StatusInternalServerError)
			return
		}
	}

	if created {
		go api.sendWelcome(user)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "user": user})
}

func (api *GiftAPI) sendWelcome(user User) {
	if api.bot == nil {
		return
	}

	name := ""
	if user.FirstName != nil {
		name = " " + *user.FirstName
	}
	msg := tgbotapi.NewMessage(user.TgId, fmt.Sprintf(`Dear%s

Welcome to Gift Miner 🎁

Your gifts earn income every 12 hours. Launch the app and claim it!`, name))
	if _, err := api.bot.Send(msg); err != nil {
		ErrorLogger.Println(err)
	}
}

func (api *GiftAPI) syncGifts(w http.ResponseWriter, r *http.Request) {
	var body SyncRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}
	defer r.Body.Close()

	if err := api.store.SyncGifts(body.UserId, mockGifts); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false})
			return
		}
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (api *GiftAPI) listGifts(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("userId")
	if userId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}

	items, err := api.store.ListGifts(userId, time.Now().UnixMilli())
	if err != nil {
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (api *GiftAPI) claimGift(w http.ResponseWriter, r *http.Request) {
	var body ClaimRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserId == "" || body.GiftTypeId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}
	defer r.Body.Close()

	out, err := api.store.Claim(body.UserId, body.GiftTypeId, time.Now().UnixMilli())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "gained": 0})
			return
		}
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (api *GiftAPI) balance(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("userId")
	if userId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}

	user, err := api.store.UserByID(userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false})
			return
		}
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balanceCents":    user.BalanceCents,
		"withdrawEnabled": false,
	})
}

func (api *GiftAPI) transactions(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("userId")
	if userId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}

	limit := 50
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 || parsed > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
			return
		}
		limit = parsed
	}

	txns, err := api.store.UserTransactions(userId, limit)
	if err != nil {
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, txns)
}

func (api *GiftAPI) leaderboard(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("userId")
	if userId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad_request"})
		return
	}

	userRank, err := api.store.UserRank(userId)
	if err != nil {
		OnError(r, err.Error())
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}

	api.rankMu.RLock()
	stats := api.topFifty
	api.rankMu.RUnlock()
	stats.UserRank = userRank

	writeJSON(w, http.StatusOK, stats)
}

func (api *GiftAPI) cacheUserRankings(topFifty *Stats) {
	refresh := func() {
		stats, err := api.store.AllRankings()
		if err != nil {
			ErrorLogger.Printf("cacheUserRankings Error: %v\n", err)
			return
		}
		api.rankMu.Lock()
		*topFifty = stats
		api.rankMu.Unlock()
	}

	refresh()
	for range time.Tick(time.Minute * 30) {
		refresh()
	}
}

func AccessControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		host := ""

		if origin == "http://localhost:5173" {
			host = "http://localhost:5173"
		}

		w.Header().Set("Access-Control-Allow-Origin", host)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Create a custom visitor struct which holds the rate limiter for each
// visitor and the last time that the visitor was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Change the map to hold values of the type visitor.
var visitors = make(map[string]*visitor)
var mu sync.Mutex

// Run a background goroutine to remove old entries from the visitors map.
func initRateLimitCleanUp() {
	go cleanupVisitors()
}

func getVisitor(addr string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	v, exists := visitors[addr]
	if !exists {
		limiter := rate.NewLimiter(10, 30)
		// Include the current time when creating a new visitor.
		visitors[addr] = &visitor{limiter, time.Now()}
		return limiter
	}

	// Update the last seen time for the visitor.
	v.lastSeen = time.Now()
	return v.limiter
}

// Every minute check the map for visitors that haven't been seen for
// more than 3 minutes and delete the entries.
func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for addr, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, addr)
			}
		}
		mu.Unlock()
	}
}

func rateLimitMiddleWare(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			addr = r.RemoteAddr
		}

		limiter := getVisitor(addr)
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if time.Since(start) > 50*time.Millisecond {
			InfoLogger.Println(r.Method, r.URL.String(), time.Since(start))
		}
	})
}

const maxConcurrentRequests = 3000

var sem = make(chan struct{}, maxConcurrentRequests)

func limitConcurrentRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "Server is overloaded. Please try again later.")
		}
	})
}
