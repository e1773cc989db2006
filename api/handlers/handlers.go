// Package handlers exposes the engine over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/ai"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
	"github.com/NethermindEth/masp/simulation"
)

// Options configures the HTTP surface.
type Options struct {
	// AutoStartInterval starts the simulation after an agent is created
	// when it is not already running. Zero disables auto start.
	AutoStartInterval time.Duration
	StrictProbe       bool
	CORSOrigins       []string
	// FeedLog is tailed by websocket clients. Empty disables live updates.
	FeedLog string
	Log     *logger.Logger
}

// Server holds the handlers' dependencies
type Server struct {
	engine *simulation.Engine
	opts   Options
	log    *logger.Logger
}

func NewServer(engine *simulation.Engine, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Server{engine: engine, opts: opts, log: opts.Log}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.cors())

	r.GET("/health", s.health)
	r.GET("/ws", s.HandleWebSocket)

	api := r.Group("/api")
	api.GET("/personalities", s.personalities)

	agents := api.Group("/agents")
	agents.POST("/create", s.createHosted)
	agents.POST("/create-external", s.createExternal)
	agents.POST("/create-llm", s.createLLM)
	agents.POST("/probe-external", s.probeExternal)
	agents.GET("/list", s.listAgents)
	agents.POST("/remove", s.removeAgent)

	sim := api.Group("/simulation")
	sim.POST("/start", s.start)
	sim.POST("/stop", s.stop)
	sim.POST("/step", s.step)

	api.GET("/feed", s.feed)
	api.POST("/feed/clear", s.clearFeed)
	api.POST("/feed/remove-fallbacks", s.removeFallbacks)
	api.GET("/leaderboard", s.leaderboard)
	api.GET("/state", s.state)
	api.GET("/chain/proof", s.chainProof)
	return r
}

func (s *Server) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.opts.CORSOrigins))
	for _, o := range s.opts.CORSOrigins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func (s *Server) health(c *gin.Context) {
	st := s.engine.State()
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"chain_mode": s.engine.ChainProof(1).Mode,
		"agents":     st.Agents,
		"step":       st.Step,
	})
}

func (s *Server) personalities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"personalities": agent.Personalities(),
		"strategies":    agent.Strategies(),
	})
}

type createRequest struct {
	Name        string `json:"name"`
	Wallet      string `json:"wallet_address"`
	Personality string `json:"personality"`
	Strategy    string `json:"strategy"`
	Endpoint    string `json:"agent_endpoint"`
	APIKey      string `json:"api_key"`
	Strict      *bool  `json:"strict_compatibility"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	BaseURL     string `json:"base_url"`
}

func (r createRequest) config() agent.Config {
	return agent.Config{
		Name:        strings.TrimSpace(r.Name),
		Wallet:      strings.TrimSpace(r.Wallet),
		Personality: strings.TrimSpace(r.Personality),
		Strategy:    strings.TrimSpace(r.Strategy),
		Endpoint:    strings.TrimSpace(r.Endpoint),
		APIKey:      strings.TrimSpace(r.APIKey),
		Provider:    strings.ToLower(strings.TrimSpace(r.Provider)),
		Model:       strings.TrimSpace(r.Model),
		BaseURL:     strings.TrimSpace(r.BaseURL),
	}
}

func bindCreate(c *gin.Context) (createRequest, bool) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return req, false
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name is required")
		return req, false
	}
	return req, true
}

// ensureRunning mirrors the behaviour of starting the simulation as soon as
// someone adds an agent.
func (s *Server) ensureRunning() {
	if s.opts.AutoStartInterval <= 0 || s.engine.Running() {
		return
	}
	if err := s.engine.Start(s.opts.AutoStartInterval); err != nil && !errors.Is(err, simulation.ErrAlreadyRunning) {
		s.log.Error("auto start", "%v", err)
	}
}

func (s *Server) createHosted(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	a, err := s.engine.CreateHostedAgent(c.Request.Context(), req.config())
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	s.ensureRunning()
	cfg := a.Config()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"agent": gin.H{
			"name":        a.Name,
			"type":        a.Kind,
			"wallet":      a.Wallet,
			"personality": cfg.Personality,
			"strategy":    cfg.Strategy,
		},
	})
}

func (s *Server) createExternal(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	if req.Endpoint == "" {
		badRequest(c, "agent_endpoint is required")
		return
	}
	strict := s.opts.StrictProbe
	if req.Strict != nil {
		strict = *req.Strict
	}
	a, probe, err := s.engine.CreateExternalAgent(c.Request.Context(), req.config(), strict)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	s.ensureRunning()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"agent": gin.H{
			"name":     a.Name,
			"type":     a.Kind,
			"wallet":   a.Wallet,
			"endpoint": a.Config().Endpoint,
		},
		"compatibility": gin.H{
			"protocol_version": protocol.Version,
			"strict":           strict,
			"probe":            probe,
		},
	})
}

func (s *Server) createLLM(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		badRequest(c, "api_key is required")
		return
	}
	if _, err := ai.ParseProvider(req.Provider); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := s.engine.CreateLLMAgent(c.Request.Context(), req.config())
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	s.ensureRunning()
	cfg := a.Config()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"agent": gin.H{
			"name":     a.Name,
			"type":     a.Kind,
			"wallet":   a.Wallet,
			"provider": cfg.Provider,
			"model":    cfg.Model,
			"base_url": cfg.BaseURL,
		},
	})
}

func (s *Server) probeExternal(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	endpoint := strings.TrimSpace(req.Endpoint)
	if err := protocol.ValidateEndpoint(endpoint); err != nil {
		badRequest(c, err.Error())
		return
	}
	probe := s.engine.Probe(c.Request.Context(), endpoint, strings.TrimSpace(req.APIKey))
	c.JSON(http.StatusOK, gin.H{
		"success":          probe.OK,
		"protocol_version": protocol.Version,
		"probe":            probe,
	})
}

func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.engine.ListAgents()})
}

func (s *Server) removeAgent(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name is required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := s.engine.RemoveAgent(name); err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": name})
}

func (s *Server) start(c *gin.Context) {
	var req struct {
		IntervalMS int64 `json:"interval_ms"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body: "+err.Error())
			return
		}
	}
	interval := time.Duration(req.IntervalMS) * time.Millisecond
	if err := s.engine.Start(interval); err != nil && !errors.Is(err, simulation.ErrAlreadyRunning) {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "running": s.engine.Running(), "interval_ms": req.IntervalMS})
}

func (s *Server) stop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"success": true, "running": s.engine.Running()})
}

func (s *Server) step(c *gin.Context) {
	res, err := s.engine.Step(c.Request.Context())
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"step":        res.Step,
		"actions":     res.Actions,
		"leaderboard": res.Leaderboard,
	})
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) feed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feed": s.engine.Feed(queryLimit(c))})
}

func (s *Server) clearFeed(c *gin.Context) {
	s.engine.ClearFeed()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) removeFallbacks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": s.engine.RemoveFallbackEntries()})
}

func (s *Server) leaderboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"leaderboard": s.engine.Leaderboard()})
}

func (s *Server) state(c *gin.Context) {
	st := s.engine.State()
	c.JSON(http.StatusOK, gin.H{
		"running":           st.Running,
		"step":              st.Step,
		"total_accusations": st.TotalAccusations,
		"seed":              st.Seed,
		"agents":            s.engine.ListAgents(),
	})
}

func (s *Server) chainProof(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.ChainProof(queryLimit(c)))
}
