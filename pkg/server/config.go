package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/config"
	"github.com/charlie0129/cellsim/pkg/ranges"
	"github.com/charlie0129/cellsim/pkg/session"
)

func (s *Server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

// setConfigInt binds an integer body, checks it, applies it and saves the
// config file.
func (s *Server) setConfigInt(c *gin.Context, name string, check func(int) error, set func(int)) {
	var v int
	if err := c.ShouldBindJSON(&v); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := check(v); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	set(v)
	if err := s.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}

	msg := fmt.Sprintf("set %s to %d", name, v)
	logrus.Info(msg)
	c.IndentedJSON(http.StatusCreated, msg)
}

func (s *Server) setMaxCount(c *gin.Context) {
	s.setConfigInt(c, "maxCount", func(v int) error {
		if v < session.MinCount || v > session.MaxCount {
			return fmt.Errorf("maxCount must be between %d and %d, got %d", session.MinCount, session.MaxCount, v)
		}
		if d := s.conf.DefaultCount(); v < d {
			return fmt.Errorf("maxCount must not be below defaultCount %d, got %d", d, v)
		}
		return nil
	}, s.conf.SetMaxCount)
}

func (s *Server) setDefaultCount(c *gin.Context) {
	s.setConfigInt(c, "defaultCount", func(v int) error {
		if m := s.conf.MaxCount(); v < session.MinCount || v > m {
			return fmt.Errorf("defaultCount must be between %d and %d, got %d", session.MinCount, m, v)
		}
		return nil
	}, s.conf.SetDefaultCount)
}

func (s *Server) setDefaultPrecision(c *gin.Context) {
	s.setConfigInt(c, "defaultPrecision", ranges.ValidatePrecision, s.conf.SetDefaultPrecision)
}

func (s *Server) setSessionTTL(c *gin.Context) {
	s.setConfigInt(c, "sessionTTLMinutes", func(v int) error {
		if v < 0 {
			return fmt.Errorf("sessionTTLMinutes must not be negative, got %d", v)
		}
		return nil
	}, func(v int) {
		s.conf.SetSessionTTLMinutes(v)
		s.sessions.SetTTL(s.sessionTTL())
	})
}
