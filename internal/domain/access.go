package domain

import "errors"

// ErrUnauthorized возвращается при попытке выполнить админскую команду без прав.
var ErrUnauthorized = errors.New("требуются права администратора")

// AccessPolicy задаёт правила доступа к админским командам. BypassAdminChecks
// глобально отключает проверку (режим разработки, в проде использовать нельзя).
type AccessPolicy struct {
	BypassAdminChecks bool
}

// AuthorizeAdmin проверяет, что вызывающий — администратор гильдии.
func (p AccessPolicy) AuthorizeAdmin(isAdmin bool) error {
	if p.BypassAdminChecks {
		return nil
	}
	if !isAdmin {
		return ErrUnauthorized
	}
	return nil
}
