// Copyright 2022 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package auth

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cloudbase/gitlab-job-exporter/config"
	exporterErrors "github.com/cloudbase/gitlab-job-exporter/errors"
)

const tokenIssuer = "gitlab-job-exporter"

// JWTClaims holds JWT claims
type JWTClaims struct {
	TokenID     string `json:"token_id"`
	ReadMetrics bool   `json:"read_metrics"`
	jwt.RegisteredClaims
}

// GetJWTMetricsToken returns a JWT token that can be used to read metrics.
func GetJWTMetricsToken(cfg config.JWTAuth) (string, error) {
	if cfg.Secret == "" {
		return "", exporterErrors.NewBadRequestError("missing JWT secret")
	}

	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   "metrics",
		},
		TokenID:     uuid.NewString(),
		ReadMetrics: true,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", errors.Wrap(err, "fetching token string")
	}

	return tokenString, nil
}
