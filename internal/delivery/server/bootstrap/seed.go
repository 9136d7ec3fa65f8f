package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agentchat/internal/domain/chat"
	"agentchat/internal/infra/httpclient"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document accepted by `agents import` and --seed.
type SeedFile struct {
	Agents []chat.Agent    `yaml:"agents"`
	Users  []chat.UserData `yaml:"users"`
}

// LoadSeedFile reads and validates a seed file.
func LoadSeedFile(path string, opts httpclient.URLValidationOptions) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data, opts)
}

// ParseSeed decodes a seed document. Unknown fields are rejected.
func ParseSeed(data []byte, opts httpclient.URLValidationOptions) (SeedFile, error) {
	var seed SeedFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}

	var issues []error
	seen := map[string]struct{}{}
	for i := range seed.Agents {
		agent := &seed.Agents[i]
		agent.ID = strings.TrimSpace(agent.ID)
		if err := chat.ValidateID(agent.ID); err != nil {
			issues = append(issues, fmt.Errorf("agents[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[agent.ID]; dup {
			issues = append(issues, fmt.Errorf("agents[%d]: duplicate id %s", i, agent.ID))
			continue
		}
		seen[agent.ID] = struct{}{}
		if strings.TrimSpace(agent.Name) == "" {
			agent.Name = agent.ID
		}
		parsed, err := httpclient.ValidateEndpointURL(agent.APIURL, opts)
		if err != nil {
			issues = append(issues, fmt.Errorf("agent %s api_url: %w", agent.ID, err))
			continue
		}
		agent.APIURL = parsed.String()
	}
	for i := range seed.Users {
		user := &seed.Users[i]
		user.UID = strings.TrimSpace(user.UID)
		if err := chat.ValidateID(user.UID); err != nil {
			issues = append(issues, fmt.Errorf("users[%d]: %w", i, err))
		}
	}
	if len(issues) > 0 {
		return SeedFile{}, errors.Join(issues...)
	}
	return seed, nil
}

// Import upserts every agent and user of the seed.
func (s Stores) Import(ctx context.Context, seed SeedFile) error {
	for _, agent := range seed.Agents {
		if err := s.Agents.Upsert(ctx, agent); err != nil {
			return fmt.Errorf("import agent %s: %w", agent.ID, err)
		}
	}
	for _, user := range seed.Users {
		if err := s.Users.Upsert(ctx, user); err != nil {
			return fmt.Errorf("import user %s: %w", user.UID, err)
		}
	}
	return nil
}
