package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"agentchat/internal/domain/chat"
	"agentchat/internal/shared/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const agentColumns = `id, name, description, api_url, prompt, agent_role, is_public, config`

// AgentStore implements chat.AgentStore on the agents table.
type AgentStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ chat.AgentStore = (*AgentStore)(nil)

// NewAgentStore creates an agent store.
func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool, logger: newLogger("AgentPostgresStore")}
}

func (s *AgentStore) Get(ctx context.Context, agentID string) (chat.Agent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM `+agentsTable+` WHERE id = $1`, agentID)
	agent, err := s.scan(row)
	if err != nil {
		return chat.Agent{}, mapNoRows(err, "agent "+agentID)
	}
	return agent, nil
}

func (s *AgentStore) List(ctx context.Context, includePrivate bool) ([]chat.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM `+agentsTable+`
		 WHERE is_public OR $1
		 ORDER BY lower(name) ASC, id ASC`,
		includePrivate,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []chat.Agent
	for rows.Next() {
		agent, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

func (s *AgentStore) Upsert(ctx context.Context, agent chat.Agent) error {
	if err := chat.ValidateID(agent.ID); err != nil {
		return err
	}
	config, err := json.Marshal(agent.Config)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+agentsTable+` (id, name, description, api_url, prompt, agent_role, is_public, config, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   api_url = EXCLUDED.api_url,
		   prompt = EXCLUDED.prompt,
		   agent_role = EXCLUDED.agent_role,
		   is_public = EXCLUDED.is_public,
		   config = EXCLUDED.config,
		   updated_at = now()`,
		agent.ID, agent.Name, agent.Description, agent.APIURL, agent.Prompt, agent.AgentRole, agent.IsPublic, config,
	)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", agent.ID, err)
	}
	return nil
}

func (s *AgentStore) scan(row pgx.Row) (chat.Agent, error) {
	var agent chat.Agent
	var config []byte
	if err := row.Scan(&agent.ID, &agent.Name, &agent.Description, &agent.APIURL, &agent.Prompt, &agent.AgentRole, &agent.IsPublic, &config); err != nil {
		return chat.Agent{}, err
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &agent.Config); err != nil {
			s.logger.Warn("Agent %s has unreadable config, ignoring it: %v", agent.ID, err)
		}
	}
	return agent, nil
}
