package resolution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/erp/tools/testgen/internal/openapi"
)

const projectsDoc = `
openapi: "3.0.3"
info:
  title: Projects
  version: "1.0"
paths:
  /projects:
    get:
      parameters:
        - name: status
          in: query
          schema:
            type: string
            enum: [active, archived]
        - name: page
          in: query
          required: true
          schema:
            type: integer
        - name: limit
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: OK
    post:
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/ProjectInput"
      responses:
        "201":
          description: Created
  /projects/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: string
          format: uuid
    get:
      responses:
        "200":
          description: OK
    delete:
      responses:
        "204":
          description: Deleted
  /projects/{id}/tasks:
    post:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
            format: uuid
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [title]
              properties:
                title:
                  type: string
                count:
                  type: integer
      responses:
        "201":
          description: Created
  /tickets:
    post:
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/TicketInput"
      responses:
        "201":
          description: Created
  /broken:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [kind]
              properties:
                kind:
                  type: string
                  enum: []
                link:
                  $ref: "#/components/schemas/Nowhere"
      responses:
        "201":
          description: Created
components:
  schemas:
    ProjectInput:
      type: object
      required: [name, visibility]
      properties:
        name:
          type: string
        visibility:
          type: string
          enum: [private, public]
        owner_id:
          type: string
          format: uuid
        budget:
          type: number
        priority:
          type: integer
        tags:
          type: array
          items:
            type: string
        settings:
          $ref: "#/components/schemas/Settings"
        created_at:
          type: string
          format: date-time
        password:
          type: string
        manager:
          anyOf:
            - type: "null"
            - $ref: "#/components/schemas/Person"
    Settings:
      type: object
      properties:
        notify:
          type: boolean
        count:
          type: integer
    Person:
      type: object
      properties:
        title:
          type: string
    TicketInput:
      type: object
      required: [status, owner]
      properties:
        status:
          anyOf:
            - $ref: "#/components/schemas/TicketStatus"
            - type: "null"
        owner:
          type: object
          properties:
            kind:
              type: string
              enum: [user, team]
            name:
              type: string
        tags:
          type: array
          items:
            type: string
            enum: [red, blue]
        reviewers:
          type: array
          items:
            $ref: "#/components/schemas/Reviewer"
    TicketStatus:
      type: string
      enum: [open, closed]
    Reviewer:
      type: object
      properties:
        level:
          type: integer
          enum: [1, 2, 3]
`

func loadDoc(t *testing.T) *openapi.Document {
	t.Helper()
	doc, err := openapi.Load([]byte(projectsDoc))
	require.NoError(t, err)
	return doc
}

type mapMemory map[string]any

func (m mapMemory) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}
