package lexicon

import "github.com/hyperjump/shitsumon/internal/models"

// DefaultMappings returns the built-in Korean business vocabulary for a typical HR and
// sales schema.
func DefaultMappings() []*models.TermMapping {
	return []*models.TermMapping{
		{BusinessTerm: "직원", TechnicalTerm: "employees", Synonyms: models.StringList{"사원", "임직원", "employee"}, Category: "hr", Description: "회사에 소속된 직원"},
		{BusinessTerm: "급여", TechnicalTerm: "salary", Synonyms: models.StringList{"연봉", "월급", "wage", "pay"}, Category: "hr", Description: "직원의 급여 금액"},
		{BusinessTerm: "부서", TechnicalTerm: "department", Synonyms: models.StringList{"팀", "조직"}, Category: "hr", Description: "직원이 속한 부서"},
		{BusinessTerm: "입사일", TechnicalTerm: "hire_date", Synonyms: models.StringList{"입사 날짜", "채용일"}, Category: "hr", Description: "직원이 입사한 날짜"},
		{BusinessTerm: "매출", TechnicalTerm: "total_amount", Synonyms: models.StringList{"판매액", "매출액", "revenue"}, Category: "sales", Description: "주문 금액 합계"},
		{BusinessTerm: "고객", TechnicalTerm: "customer", Synonyms: models.StringList{"손님", "client"}, Category: "sales", Description: "주문한 고객"},
		{BusinessTerm: "주문", TechnicalTerm: "order", Synonyms: models.StringList{"오더", "구매"}, Category: "sales", Description: "고객 주문"},
		{BusinessTerm: "지역", TechnicalTerm: "region", Synonyms: models.StringList{"지방", "area"}, Category: "sales", Description: "판매 지역"},
		{BusinessTerm: "프로젝트", TechnicalTerm: "project", Synonyms: models.StringList{"과제"}, Category: "project", Description: "진행 중인 프로젝트"},
		{BusinessTerm: "예산", TechnicalTerm: "budget", Synonyms: models.StringList{"비용 한도"}, Category: "project", Description: "프로젝트 예산"},
	}
}
