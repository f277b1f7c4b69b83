// Package fixtures seeds the demo SQLite databases used by the SQL
// retrieval tool. Seeding is deterministic so repeated runs produce
// identical databases.
package fixtures

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SeedEmployees creates and populates the employees database at path,
// replacing any existing contents.
func SeedEmployees(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open employees database: %w", err)
	}
	defer db.Close()

	return runScript(db, []string{
		`DROP TABLE IF EXISTS employee_projects`,
		`DROP TABLE IF EXISTS employees`,
		`DROP TABLE IF EXISTS positions`,
		`DROP TABLE IF EXISTS departments`,

		`CREATE TABLE departments (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT NOT NULL
		)`,
		`CREATE TABLE positions (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			level INTEGER NOT NULL
		)`,
		`CREATE TABLE employees (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			department_id INTEGER NOT NULL REFERENCES departments(id),
			position_id INTEGER NOT NULL REFERENCES positions(id),
			salary REAL NOT NULL,
			hired_on TEXT NOT NULL
		)`,
		`CREATE TABLE employee_projects (
			employee_id INTEGER NOT NULL REFERENCES employees(id),
			project_code TEXT NOT NULL,
			role TEXT NOT NULL,
			PRIMARY KEY (employee_id, project_code)
		)`,

		`INSERT INTO departments (id, name, location) VALUES
			(1, 'Engineering', 'Austin'),
			(2, 'Data', 'Remote'),
			(3, 'Operations', 'Chicago'),
			(4, 'Sales', 'New York')`,

		`INSERT INTO positions (id, title, level) VALUES
			(1, 'Software Engineer', 2),
			(2, 'Senior Software Engineer', 3),
			(3, 'Data Analyst', 2),
			(4, 'Operations Manager', 3),
			(5, 'Account Executive', 2)`,

		`INSERT INTO employees (id, name, email, department_id, position_id, salary, hired_on) VALUES
			(1, 'Alice Nguyen', 'alice@example.com', 1, 2, 148000, '2019-03-11'),
			(2, 'Bruno Costa', 'bruno@example.com', 1, 1, 112000, '2021-07-01'),
			(3, 'Carmen Ruiz', 'carmen@example.com', 2, 3, 98000, '2020-01-20'),
			(4, 'Deshawn Carter', 'deshawn@example.com', 3, 4, 121000, '2018-05-14'),
			(5, 'Emi Tanaka', 'emi@example.com', 2, 3, 101000, '2022-02-28'),
			(6, 'Farid Haddad', 'farid@example.com', 4, 5, 94000, '2023-06-05'),
			(7, 'Greta Lindqvist', 'greta@example.com', 1, 1, 108000, '2022-09-12')`,

		`INSERT INTO employee_projects (employee_id, project_code, role) VALUES
			(1, 'PHX', 'tech lead'),
			(2, 'PHX', 'engineer'),
			(3, 'ATLAS', 'analyst'),
			(4, 'ATLAS', 'coordinator'),
			(5, 'ATLAS', 'analyst'),
			(7, 'PHX', 'engineer')`,
	})
}

func runScript(db *sql.DB, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("seed statement failed: %w", err)
		}
	}
	return tx.Commit()
}
