package fixtures

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SeedProjects creates and populates the projects database at path,
// replacing any existing contents.
func SeedProjects(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open projects database: %w", err)
	}
	defer db.Close()

	return runScript(db, []string{
		`DROP TABLE IF EXISTS project_phases`,
		`DROP TABLE IF EXISTS projects`,
		`DROP TABLE IF EXISTS clients`,
		`DROP TABLE IF EXISTS technologies`,

		`CREATE TABLE clients (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			industry TEXT NOT NULL
		)`,
		`CREATE TABLE technologies (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL
		)`,
		`CREATE TABLE projects (
			id INTEGER PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			client_id INTEGER NOT NULL REFERENCES clients(id),
			technology_id INTEGER NOT NULL REFERENCES technologies(id),
			budget REAL NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE project_phases (
			project_id INTEGER NOT NULL REFERENCES projects(id),
			phase TEXT NOT NULL,
			started_on TEXT NOT NULL,
			completed_on TEXT,
			PRIMARY KEY (project_id, phase)
		)`,

		`INSERT INTO clients (id, name, industry) VALUES
			(1, 'Northwind Logistics', 'transportation'),
			(2, 'Helio Health', 'healthcare'),
			(3, 'Quartz Financial', 'finance')`,

		`INSERT INTO technologies (id, name, category) VALUES
			(1, 'Go', 'backend'),
			(2, 'PostgreSQL', 'database'),
			(3, 'React', 'frontend'),
			(4, 'Terraform', 'infrastructure')`,

		`INSERT INTO projects (id, code, name, client_id, technology_id, budget, status) VALUES
			(1, 'PHX', 'Phoenix Replatform', 1, 1, 450000, 'active'),
			(2, 'ATLAS', 'Atlas Data Warehouse', 3, 2, 610000, 'active'),
			(3, 'ORBIT', 'Orbit Patient Portal', 2, 3, 280000, 'completed'),
			(4, 'BEDROCK', 'Bedrock Cloud Migration', 3, 4, 390000, 'planned')`,

		`INSERT INTO project_phases (project_id, phase, started_on, completed_on) VALUES
			(1, 'discovery', '2024-01-08', '2024-02-16'),
			(1, 'build', '2024-02-19', NULL),
			(2, 'discovery', '2023-11-01', '2023-12-15'),
			(2, 'build', '2024-01-02', NULL),
			(3, 'discovery', '2023-03-06', '2023-04-14'),
			(3, 'build', '2023-04-17', '2023-10-27'),
			(3, 'rollout', '2023-10-30', '2023-12-01')`,
	})
}
