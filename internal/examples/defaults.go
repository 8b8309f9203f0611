package examples

import (
	"context"

	"github.com/hyperjump/shitsumon/internal/models"
)

// DefaultExamples returns the built-in examples for an HR and sales schema with
// employees, departments and sales tables.
func DefaultExamples() []*models.QueryExample {
	tags := func(t ...string) models.StringList { return t }
	return []*models.QueryExample{
		{NaturalLanguageQuery: "모든 직원을 보여주세요", SQLQuery: "SELECT * FROM employees;",
			QueryCategory: "select", Difficulty: models.DifficultyEasy, Tags: tags("basic", "employees")},
		{NaturalLanguageQuery: "모든 부서를 보여주세요", SQLQuery: "SELECT * FROM departments;",
			QueryCategory: "select", Difficulty: models.DifficultyEasy, Tags: tags("basic", "departments")},
		{NaturalLanguageQuery: "급여가 6000000보다 큰 직원을 보여주세요", SQLQuery: "SELECT * FROM employees WHERE salary > 6000000;",
			QueryCategory: "filter", Difficulty: models.DifficultyEasy, Tags: tags("filter", "employees", "salary")},
		{NaturalLanguageQuery: "2020년 이후에 입사한 직원을 보여주세요", SQLQuery: "SELECT * FROM employees WHERE hire_date > '2020-01-01';",
			QueryCategory: "filter", Difficulty: models.DifficultyEasy, Tags: tags("filter", "employees", "date")},
		{NaturalLanguageQuery: "직원 이름과 소속 부서명을 보여주세요",
			SQLQuery:      "SELECT e.name, d.department_name\nFROM employees e\nJOIN departments d ON e.department_id = d.department_id;",
			QueryCategory: "join", Difficulty: models.DifficultyMedium, Tags: tags("join", "employees", "departments")},
		{NaturalLanguageQuery: "부서별 평균 급여를 계산해주세요",
			SQLQuery:      "SELECT d.department_name, AVG(e.salary) AS avg_salary\nFROM employees e\nJOIN departments d ON e.department_id = d.department_id\nGROUP BY d.department_name;",
			QueryCategory: "aggregation", Difficulty: models.DifficultyMedium, Tags: tags("aggregation", "join", "salary")},
		{NaturalLanguageQuery: "각 부서의 직원 수를 세어주세요",
			SQLQuery:      "SELECT d.department_name, COUNT(*) AS employee_count\nFROM employees e\nJOIN departments d ON e.department_id = d.department_id\nGROUP BY d.department_name;",
			QueryCategory: "aggregation", Difficulty: models.DifficultyMedium, Tags: tags("aggregation", "count", "departments")},
		{NaturalLanguageQuery: "급여가 가장 높은 5명의 직원을 보여주세요", SQLQuery: "SELECT * FROM employees ORDER BY salary DESC LIMIT 5;",
			QueryCategory: "sort", Difficulty: models.DifficultyEasy, Tags: tags("sort", "limit", "salary")},
		{NaturalLanguageQuery: "마케팅 부서의 총 급여는 얼마인가요?",
			SQLQuery:      "SELECT SUM(e.salary) AS total_salary\nFROM employees e\nJOIN departments d ON e.department_id = d.department_id\nWHERE d.department_name = '마케팅팀';",
			QueryCategory: "aggregation", Difficulty: models.DifficultyMedium, Tags: tags("aggregation", "filter", "join")},
		{NaturalLanguageQuery: "지역별 총 매출을 보여주세요",
			SQLQuery:      "SELECT region, SUM(total_amount) AS total_sales\nFROM sales\nGROUP BY region\nORDER BY total_sales DESC;",
			QueryCategory: "aggregation", Difficulty: models.DifficultyMedium, Tags: tags("aggregation", "sales", "sort")},
	}
}

// SeedDefaults adds the built-in examples whose questions are not in the bank yet and
// returns how many were added.
func (b *Bank) SeedDefaults(ctx context.Context) (int, error) {
	all, err := b.store.ListExamples(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(all))
	for _, ex := range all {
		have[ex.NaturalLanguageQuery] = true
	}
	var missing []*models.QueryExample
	for _, ex := range DefaultExamples() {
		if !have[ex.NaturalLanguageQuery] {
			missing = append(missing, ex)
		}
	}
	return b.BulkAdd(ctx, missing)
}
